package service

import (
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/util"
	"time"
)

// TokenService 签发/校验会话令牌。令牌对调用方不透明，不维护吊销列表：
// 登出即客户端丢弃令牌，这是已知限制
type TokenService struct {
	secret string
	ttl    time.Duration
}

func NewTokenService(cfg *config.JWTConfig) *TokenService {
	return &TokenService{
		secret: cfg.Secret,
		ttl:    cfg.ExpireTime,
	}
}

func (s *TokenService) Issue(account *model.Account) (string, error) {
	return util.GenerateJWT(account, s.secret, s.ttl)
}

func (s *TokenService) Verify(token string) (*util.Claims, error) {
	return util.ParseJWT(token, s.secret)
}
