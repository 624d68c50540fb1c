package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cipherpanel/internal/core/auth"
	"cipherpanel/internal/feature/user"
	resp "cipherpanel/internal/transport/http/response"
	"cipherpanel/pkg/utils"
)

type AuthHandler struct {
	DB  *gorm.DB
	JWT *auth.JWTer
	Log *zap.Logger
}

type loginIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"     binding:"omitempty,max=64"` // 首次注册可用
}

type loginOut struct {
	Token string      `json:"token"`
	IsNew bool        `json:"isNew"`
	User  interface{} `json:"user"`
}

// Login 查不到就自动注册 + 发 JWT
func (h *AuthHandler) Login(c *gin.Context) {
	var in loginIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)

	var u user.UserModel
	err := h.DB.WithContext(c).Where("email = ?", email).First(&u).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if name == "" {
			if at := strings.IndexByte(email, '@'); at > 0 {
				name = email[:at]
			} else {
				name = "user"
			}
		}
		u = user.UserModel{
			ID:           utils.NewID(),
			Email:        email,
			Name:         name,
			PasswordHash: utils.HashPassword(in.Password),
		}
		if e := h.DB.WithContext(c).Create(&u).Error; e != nil {
			// 并发兜底：唯一冲突 → 再查一次
			if isDupKey(e) {
				if e2 := h.DB.WithContext(c).Where("email = ?", email).First(&u).Error; e2 != nil {
					c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "login failed"))
					return
				}
			} else {
				c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, e.Error()))
				return
			}
		}
		h.issue(c, &u, true)

	case err != nil:
		h.Log.Error("login query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, ""))

	default:
		if !utils.CheckPassword(in.Password, u.PasswordHash) {
			c.JSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid credentials"))
			return
		}
		h.issue(c, &u, false)
	}
}

func (h *AuthHandler) issue(c *gin.Context, u *user.UserModel, isNew bool) {
	tok, err := h.JWT.Issue(u.ID)
	if err != nil || tok == "" {
		h.Log.Error("issue token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "issue token failed"))
		return
	}
	c.JSON(http.StatusOK, resp.OK(loginOut{
		Token: tok, IsNew: isNew,
		User: gin.H{"id": u.ID, "email": u.Email, "name": u.Name},
	}))
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString("userId")
	var u user.UserModel
	if err := h.DB.WithContext(c).Where("id = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, "user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, ""))
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"id": u.ID, "email": u.Email, "name": u.Name}))
}

func isDupKey(err error) bool {
	// 不依赖 gorm.ErrDuplicatedKey，避免版本差异导致“undefined”
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
