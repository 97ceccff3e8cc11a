package service

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialVault 负责密码哈希与校验。哈希不可逆，校验失败不产生错误
type CredentialVault struct {
	cost int
}

func NewCredentialVault() *CredentialVault {
	return &CredentialVault{cost: bcrypt.DefaultCost}
}

func (v *CredentialVault) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify 通过 bcrypt 自带的比较函数判断，口令错误只返回 false
func (v *CredentialVault) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
