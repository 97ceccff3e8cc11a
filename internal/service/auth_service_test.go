package service

import (
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func newAuthService(t *testing.T) (*AuthService, *repository.AccountRepository) {
	t.Helper()
	repo := newTestRepo(t)
	svc := NewAuthService(
		repo,
		NewCredentialVault(),
		NewTokenService(&config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}),
		NewChallengeService(10*time.Minute),
		&fakeMailer{},
	)
	return svc, repo
}

func registerAccount(t *testing.T, svc *AuthService, username, email, password string) *model.Account {
	t.Helper()
	account := &model.Account{Username: username, Email: email}
	require.NoError(t, svc.Register(account, password))
	return account
}

func TestRegisterDefaults(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, stored.Role)
	assert.NotEqual(t, "s3cret", stored.Password)
	assert.False(t, stored.RegistrationDate.IsZero())
	assert.False(t, stored.PasswordLastChanged.IsZero())
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newAuthService(t)

	registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	err := svc.Register(&model.Account{Username: "alice", Email: "new@example.com"}, "s3cret")
	assert.ErrorIs(t, err, util.ErrUserExists)

	err = svc.Register(&model.Account{Username: "bob", Email: "alice@example.com"}, "s3cret")
	assert.ErrorIs(t, err, util.ErrUserExists)
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	result, err := svc.Login("alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, model.RoleUser, result.Role)
	assert.False(t, result.TwoFactorRequired)

	// 成功登录追加历史
	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Len(t, stored.LoginHistory, 1)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)

	registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	_, err := svc.Login("ghost", "s3cret")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)

	_, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, util.ErrIncorrectPassword)
}

func enableTwoFactor(t *testing.T, repo *repository.AccountRepository, id uint) {
	t.Helper()
	_, err := repo.UpdateAtomic(id, func(a *model.Account) error {
		a.TwoFactorEnabled = true
		return nil
	})
	require.NoError(t, err)
}

func TestLoginWithTwoFactorEnabled(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")
	enableTwoFactor(t, repo, account.ID)

	result, err := svc.Login("alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, result.TwoFactorRequired)
	assert.Equal(t, "alice@example.com", result.Email)
	assert.Empty(t, result.Token)

	// 密码通过但未完成二次验证，不算登录
	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.LoginHistory)
}

func TestTwoFactorFlow(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")
	enableTwoFactor(t, repo, account.ID)

	require.NoError(t, svc.SendTwoFactorCode("alice@example.com"))

	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TwoFactorCode)
	code := *stored.TwoFactorCode

	// 在途验证码未过期时拒绝重发
	assert.ErrorIs(t, svc.SendTwoFactorCode("alice@example.com"), util.ErrCodeStillValid)

	result, err := svc.VerifyTwoFactorCode("alice@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	// 验证码一次性，消费后不可复用
	stored, err = repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TwoFactorCode)
	assert.Len(t, stored.LoginHistory, 1)

	_, err = svc.VerifyTwoFactorCode("alice@example.com", code)
	assert.ErrorIs(t, err, util.ErrCodeNotSet)
}

func TestTwoFactorWrongCode(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")
	enableTwoFactor(t, repo, account.ID)

	require.NoError(t, svc.SendTwoFactorCode("alice@example.com"))

	_, err := svc.VerifyTwoFactorCode("alice@example.com", "000000")
	if err != util.ErrCodeMismatch {
		// 万一随机码正好是 000000
		require.NoError(t, err)
		return
	}

	// 猜错不消费在途验证码
	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.TwoFactorCode)
}

func TestSendTwoFactorCodeDisabled(t *testing.T) {
	svc, _ := newAuthService(t)

	registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	assert.ErrorIs(t, svc.SendTwoFactorCode("alice@example.com"), util.ErrTwoFactorDisabled)
}

func TestVerifyTwoFactorCodeDisabledAccount(t *testing.T) {
	svc, _ := newAuthService(t)

	registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	// 未开启2FA的账号在验证端点上表现为不存在
	_, err := svc.VerifyTwoFactorCode("alice@example.com", "123456")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	require.NoError(t, svc.ForgotPassword("alice@example.com"))

	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetCode)
	code := *stored.ResetCode

	require.NoError(t, svc.ResetPassword("alice@example.com", code, "n3w-pass"))

	// 旧密码失效，新密码生效
	_, err = svc.Login("alice", "s3cret")
	assert.ErrorIs(t, err, util.ErrIncorrectPassword)

	result, err := svc.Login("alice", "n3w-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	// 重置码一次性
	stored, err = repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetCode)
}

func TestResetPasswordWrongCode(t *testing.T) {
	svc, repo := newAuthService(t)

	account := registerAccount(t, svc, "alice", "alice@example.com", "s3cret")

	require.NoError(t, svc.ForgotPassword("alice@example.com"))

	stored, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	code := *stored.ResetCode

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.ResetPassword("alice@example.com", wrong, "n3w-pass"), util.ErrCodeMismatch)

	// 失败的重置不改密码
	_, err = svc.Login("alice", "s3cret")
	require.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _ := newAuthService(t)

	assert.ErrorIs(t, svc.ForgotPassword("ghost@example.com"), util.ErrAccountNotFound)
}
