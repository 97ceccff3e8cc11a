package repository

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/util"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// casRetries 乐观锁重试上限。同一账号上的并发写冲突会在重读后重放
const casRetries = 5

type AccountRepository struct {
	DB *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// Create 写入前检查 username/email 唯一性，冲突返回 ErrUserExists 而不是覆盖
func (r *AccountRepository) Create(account *model.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Account{}).
			Where("username = ? OR email = ?", account.Username, account.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return util.ErrUserExists
		}
		return tx.Create(account).Error
	})

	if err != nil && isDuplicateKey(err) {
		return util.ErrUserExists
	}
	return err
}

func (r *AccountRepository) FindByID(id uint) (*model.Account, error) {
	var account model.Account
	err := r.DB.First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAccountNotFound
	}
	return &account, err
}

func (r *AccountRepository) FindByUsername(username string) (*model.Account, error) {
	var account model.Account
	err := r.DB.Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAccountNotFound
	}
	return &account, err
}

func (r *AccountRepository) FindByEmail(email string) (*model.Account, error) {
	var account model.Account
	err := r.DB.Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAccountNotFound
	}
	return &account, err
}

func (r *AccountRepository) ListByRole(role model.Role) ([]model.Account, error) {
	var accounts []model.Account
	err := r.DB.Where("role = ?", role).Find(&accounts).Error
	return accounts, err
}

// UpdateAtomic 对单个账号执行 read-modify-write。账号行是原子更新单元：
// 版本号不匹配说明有并发写入，重读后重放 mutate；mutate 返回的业务错误
// 原样透传，竞争失败方会在新状态上观察到自己的冲突（如重复提交）
func (r *AccountRepository) UpdateAtomic(id uint, mutate func(*model.Account) error) (*model.Account, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		var account model.Account
		if err := r.DB.First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrAccountNotFound
			}
			return nil, err
		}

		if err := mutate(&account); err != nil {
			return nil, err
		}

		current := account.Version
		account.Version = current + 1

		res := r.DB.Model(&model.Account{}).
			Where("id = ? AND version = ?", id, current).
			Select("*").
			Omit("id", "created_at").
			Updates(&account)
		if res.Error != nil {
			if isDuplicateKey(res.Error) {
				return nil, util.ErrEmailTaken
			}
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &account, nil
		}
	}
	return nil, errors.New("account update contention: retries exhausted")
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
