package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/util"
	"time"
)

type AccountService struct {
	AccountRepo *repository.AccountRepository
	Vault       *CredentialVault
	Challenges  *ChallengeService
}

func NewAccountService(accountRepo *repository.AccountRepository, vault *CredentialVault, challenges *ChallengeService) *AccountService {
	return &AccountService{
		AccountRepo: accountRepo,
		Vault:       vault,
		Challenges:  challenges,
	}
}

func (s *AccountService) GetByID(id uint) (*model.Account, error) {
	return s.AccountRepo.FindByID(id)
}

func (s *AccountService) GetByEmail(email string) (*model.Account, error) {
	return s.AccountRepo.FindByEmail(email)
}

// ProfileUpdate 自助资料更新的字段白名单。username 创建后不可变，不在此列
type ProfileUpdate struct {
	BirthDate        *string
	City             *string
	Phone            *string
	TwoFactorEnabled *bool
}

func (s *AccountService) UpdateProfile(id uint, update ProfileUpdate) (*model.Account, error) {
	return s.AccountRepo.UpdateAtomic(id, func(a *model.Account) error {
		if update.BirthDate != nil {
			a.BirthDate = *update.BirthDate
		}
		if update.City != nil {
			a.City = *update.City
		}
		if update.Phone != nil {
			a.Phone = *update.Phone
		}
		if update.TwoFactorEnabled != nil {
			a.TwoFactorEnabled = *update.TwoFactorEnabled
			// 切换2FA时作废在途验证码
			s.Challenges.Clear(a, PurposeTwoFactor)
		}
		return nil
	})
}

func (s *AccountService) ChangePassword(id uint, currentPassword, newPassword string) error {
	account, err := s.AccountRepo.FindByID(id)
	if err != nil {
		return err
	}

	if !s.Vault.Verify(currentPassword, account.Password) {
		return util.ErrIncorrectPassword
	}

	hashed, err := s.Vault.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.AccountRepo.UpdateAtomic(id, func(a *model.Account) error {
		a.Password = hashed
		a.PasswordLastChanged = time.Now()
		return nil
	})
	return err
}

func (s *AccountService) SetAvatar(id uint, url string) (*model.Account, error) {
	return s.AccountRepo.UpdateAtomic(id, func(a *model.Account) error {
		a.AvatarURL = url
		return nil
	})
}

// AdminUpdate 管理员账号补丁的字段白名单
type AdminUpdate struct {
	NewEmail         *string
	BirthDate        *string
	City             *string
	Phone            *string
	Course           *string
	Role             *model.Role
	ParentNames      *model.ParentNames
	TwoFactorEnabled *bool
}

// AdminPatch 按旧邮箱定位账号并应用补丁。换邮箱前检查新邮箱未被占用
func (s *AccountService) AdminPatch(email string, update AdminUpdate) (*model.Account, error) {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}

	if update.NewEmail != nil && *update.NewEmail != email {
		if _, err := s.AccountRepo.FindByEmail(*update.NewEmail); err == nil {
			return nil, util.ErrEmailTaken
		} else if err != util.ErrAccountNotFound {
			return nil, err
		}
	}

	return s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		if update.NewEmail != nil && *update.NewEmail != a.Email {
			a.Email = *update.NewEmail
		}
		if update.BirthDate != nil {
			a.BirthDate = *update.BirthDate
		}
		if update.City != nil {
			a.City = *update.City
		}
		if update.Phone != nil {
			a.Phone = *update.Phone
		}
		if update.Course != nil {
			a.Course = *update.Course
		}
		if update.Role != nil {
			a.Role = *update.Role
		}
		if update.ParentNames != nil {
			a.ParentNames = *update.ParentNames
		}
		if update.TwoFactorEnabled != nil {
			a.TwoFactorEnabled = *update.TwoFactorEnabled
			s.Challenges.Clear(a, PurposeTwoFactor)
		}
		return nil
	})
}
