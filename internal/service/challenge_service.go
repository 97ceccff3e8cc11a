package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/util"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// ChallengePurpose 区分同一账号上互不干扰的两类验证码
type ChallengePurpose string

const (
	PurposeTwoFactor ChallengePurpose = "2fa"
	PurposeReset     ChallengePurpose = "reset"
)

// ChallengeService 管理短时效一次性数字验证码。
// 每个用途的状态机：NoCode → Pending → {Consumed | Expired} → NoCode。
// 调用方必须在账号的原子更新内调用 Issue/Verify，保证并发签发互斥
type ChallengeService struct {
	ttl time.Duration
}

func NewChallengeService(ttl time.Duration) *ChallengeService {
	return &ChallengeService{ttl: ttl}
}

// Issue 生成6位验证码并写到账号上。已有未过期的同用途验证码时拒绝签发，
// 防止调用方通过刷请求作废在途验证码
func (s *ChallengeService) Issue(account *model.Account, purpose ChallengePurpose) (string, error) {
	code, expiresAt := s.pair(account, purpose)
	if code != nil && expiresAt != nil && time.Now().Before(*expiresAt) {
		return "", util.ErrCodeStillValid
	}

	generated, err := generateCode()
	if err != nil {
		return "", err
	}
	expiry := time.Now().Add(s.ttl)
	s.setPair(account, purpose, &generated, &expiry)
	return generated, nil
}

// Verify 校验并一次性消费验证码。观察到过期时立即清除，过期码不可复用
func (s *ChallengeService) Verify(account *model.Account, purpose ChallengePurpose, supplied string) error {
	code, expiresAt := s.pair(account, purpose)
	if code == nil || expiresAt == nil {
		return util.ErrCodeNotSet
	}
	if time.Now().After(*expiresAt) {
		s.setPair(account, purpose, nil, nil)
		return util.ErrCodeExpired
	}
	if *code != supplied {
		return util.ErrCodeMismatch
	}
	s.setPair(account, purpose, nil, nil)
	return nil
}

// Clear 清除某用途的验证码对（关闭2FA等场景）
func (s *ChallengeService) Clear(account *model.Account, purpose ChallengePurpose) {
	s.setPair(account, purpose, nil, nil)
}

func (s *ChallengeService) pair(account *model.Account, purpose ChallengePurpose) (*string, *time.Time) {
	if purpose == PurposeReset {
		return account.ResetCode, account.ResetCodeExpiresAt
	}
	return account.TwoFactorCode, account.TwoFactorExpiresAt
}

// setPair 验证码和过期时间永远成对写入或成对清除
func (s *ChallengeService) setPair(account *model.Account, purpose ChallengePurpose, code *string, expiresAt *time.Time) {
	if purpose == PurposeReset {
		account.ResetCode = code
		account.ResetCodeExpiresAt = expiresAt
	} else {
		account.TwoFactorCode = code
		account.TwoFactorExpiresAt = expiresAt
	}
}

// generateCode 均匀取 [100000, 999999]
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
