package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/util"
	"bnm_edu_backend/pkg/logger"
	"bnm_edu_backend/pkg/mailer"
	"bnm_edu_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

type AuthService struct {
	AccountRepo *repository.AccountRepository
	Vault       *CredentialVault
	Tokens      *TokenService
	Challenges  *ChallengeService
	Mailer      mailer.Mailer
}

func NewAuthService(
	accountRepo *repository.AccountRepository,
	vault *CredentialVault,
	tokens *TokenService,
	challenges *ChallengeService,
	mail mailer.Mailer,
) *AuthService {
	return &AuthService{
		AccountRepo: accountRepo,
		Vault:       vault,
		Tokens:      tokens,
		Challenges:  challenges,
		Mailer:      mail,
	}
}

// Register 创建账号。用户名/邮箱冲突由仓库层拒绝
func (s *AuthService) Register(account *model.Account, password string) error {
	hashed, err := s.Vault.Hash(password)
	if err != nil {
		return err
	}
	account.Password = hashed

	if account.Role == "" {
		account.Role = model.RoleUser
	}

	now := time.Now()
	account.RegistrationDate = now
	account.PasswordLastChanged = now

	return s.AccountRepo.Create(account)
}

type LoginResult struct {
	Token             string     `json:"token,omitempty"`
	Role              model.Role `json:"role,omitempty"`
	TwoFactorRequired bool       `json:"twoFactorRequired,omitempty"`
	Email             string     `json:"email,omitempty"`
}

// Login 按用户名登录。启用2FA的账号返回二次验证分支而不是令牌
func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	account, err := s.AccountRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}

	if !s.Vault.Verify(password, account.Password) {
		return nil, util.ErrIncorrectPassword
	}

	if account.TwoFactorEnabled {
		return &LoginResult{TwoFactorRequired: true, Email: account.Email}, nil
	}

	updated, err := s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		a.LoginHistory = append(a.LoginHistory, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(updated)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Role: updated.Role}, nil
}

// SendTwoFactorCode 签发2FA验证码并异步投递。未过期验证码在途时拒绝重发
func (s *AuthService) SendTwoFactorCode(email string) error {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return err
	}
	if !account.TwoFactorEnabled {
		return util.ErrTwoFactorDisabled
	}

	var code string
	_, err = s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		var issueErr error
		code, issueErr = s.Challenges.Issue(a, PurposeTwoFactor)
		return issueErr
	})
	if err != nil {
		return err
	}

	subject, body := mailer.TwoFactorMail(account.Username, code)
	s.sendAsync("2fa", account.Email, subject, body)
	return nil
}

// VerifyTwoFactorCode 消费2FA验证码并签发会话令牌
func (s *AuthService) VerifyTwoFactorCode(email, code string) (*LoginResult, error) {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if !account.TwoFactorEnabled {
		return nil, util.ErrAccountNotFound
	}

	updated, err := s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		if err := s.Challenges.Verify(a, PurposeTwoFactor, code); err != nil {
			return err
		}
		a.LoginHistory = append(a.LoginHistory, time.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(updated)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Role: updated.Role}, nil
}

// ForgotPassword 签发重置验证码并异步投递
func (s *AuthService) ForgotPassword(email string) error {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return err
	}

	var code string
	_, err = s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		var issueErr error
		code, issueErr = s.Challenges.Issue(a, PurposeReset)
		return issueErr
	})
	if err != nil {
		return err
	}

	subject, body := mailer.ResetCodeMail(account.Username, code)
	s.sendAsync("reset", account.Email, subject, body)
	return nil
}

// ResetPassword 消费重置验证码并改写密码哈希
func (s *AuthService) ResetPassword(email, code, newPassword string) error {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return err
	}

	hashed, err := s.Vault.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		if err := s.Challenges.Verify(a, PurposeReset, code); err != nil {
			return err
		}
		a.Password = hashed
		a.PasswordLastChanged = time.Now()
		return nil
	})
	return err
}

// sendAsync 邮件投递不阻塞请求响应，失败只记录日志和指标
func (s *AuthService) sendAsync(kind, to, subject, body string) {
	go func() {
		if err := s.Mailer.Send(to, subject, body); err != nil {
			monitoring.MailCounter.WithLabelValues(kind, "error").Inc()
			logger.Log.Error("mail delivery failed",
				zap.String("kind", kind),
				zap.String("to", to),
				zap.Error(err),
			)
			return
		}
		monitoring.MailCounter.WithLabelValues(kind, "ok").Inc()
	}()
}
