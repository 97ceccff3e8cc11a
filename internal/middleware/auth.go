package middleware

import (
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/util"
	"strings"

	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) string {
	tokenString := ""
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	return tokenString
}

// AuthMiddleware 解析令牌并从存储重新解析账号，被删除的账号不能再凭
// 旧令牌行动。授权用的角色取令牌快照，账号本体取实时数据
func AuthMiddleware(cfg *config.Config, accountRepo *repository.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		account, err := accountRepo.FindByID(claims.AccountID)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Set("account", account)
		c.Next()
	}
}

// TryAuthMiddleware 尽力解析令牌，不强制。用于注册这类可匿名访问但
// 携带令牌时需要知道调用者身份的端点
func TryAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString != "" {
			if claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret); err == nil {
				c.Set("user", claims)
			}
		}
		c.Next()
	}
}

// RoleMiddleware 精确匹配角色，无层级关系：admin 不会隐式通过仅限
// teacher 的关卡，需要放行的角色必须显式列出
func RoleMiddleware(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AccountFromContext 取 AuthMiddleware 解析出的实时账号
func AccountFromContext(c *gin.Context) *model.Account {
	value, exists := c.Get("account")
	if !exists {
		return nil
	}
	account, ok := value.(*model.Account)
	if !ok {
		return nil
	}
	return account
}
