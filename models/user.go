package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	Role       UserRole  `gorm:"size:20;not null;index" json:"role"`
	TeamId     *int      `gorm:"index" json:"team_id"`
	PositionId *int      `gorm:"index" json:"position_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) GetId() int {
	return u.ID
}

type NewUser struct {
	BusinessId string   `json:"business_id"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password" binding:"required"`
	Role       UserRole `json:"role" binding:"required"`
	TeamId     *int     `json:"team_id"`
	PositionId *int     `json:"position_id"`
}

type LoginInfo struct {
	Token        string    `json:"token"`
	UserId       int       `json:"user_id"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	BusinessId   string    `json:"business_id"`
	BusinessName string    `json:"business_name"`
	Timezone     string    `json:"timezone"`
	ExpiresAt    time.Time `json:"expires_at"`
}

/*
caches:
	Token:$token    -> username
	User:$username  -> User (without password)
*/

func userCacheKey(username string) string {
	return "User:" + username
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey(userCacheKey(user.Username))
}

func sessionLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Duration(hours) * time.Hour
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	if config.GetRedisDB() == nil {
		return nil, errors.New("session store is not ready")
	}

	var user User
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errors.New("invalid username or password")
	}
	if !utils.DereferencePtr(user.IsActive) {
		return nil, errors.New("user is disabled")
	}

	var business Business
	if err := db.WithContext(ctx).Where("id = ?", user.BusinessId).Take(&business).Error; err != nil {
		return nil, err
	}
	if !utils.DereferencePtr(business.IsActive) {
		return nil, errors.New("business is disabled")
	}

	lifespan := sessionLifespan()
	token := uuid.NewString()
	if err := config.SetRedisValue("Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:        token,
		UserId:       user.ID,
		Name:         user.Name,
		Role:         user.Role,
		BusinessId:   user.BusinessId,
		BusinessName: business.Name,
		Timezone:     business.Timezone,
		ExpiresAt:    time.Now().Add(lifespan),
	}, nil
}

// destroy current session
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("token is required")
	}
	return config.RemoveRedisKey("Token:" + token)
}

// GetSessionUser resolves a username from the session into a user, using the redis
// cache first. The cached copy never includes the password hash.
func GetSessionUser(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(userCacheKey(username), &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}
	if err := config.GetDB().WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject(userCacheKey(user.Username), &user, sessionLifespan()); err != nil {
		return nil, err
	}
	return &user, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	if !input.Role.IsValid() {
		return nil, errors.New("invalid role")
	}
	if input.BusinessId == "" {
		return nil, errors.New("business id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email != "" && !utils.IsValidEmail(email) {
		return nil, errors.New("invalid email address")
	}
	username := html.EscapeString(strings.TrimSpace(input.Username))

	var count int64
	q := db.WithContext(ctx).Model(&User{}).Where("username = ?", username)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate username or email")
	}
	if input.TeamId != nil {
		if err := utils.ValidateResourceId[Team](ctx, input.BusinessId, *input.TeamId); err != nil {
			return nil, errors.New("team not found")
		}
	}
	if input.PositionId != nil {
		if err := utils.ValidateResourceId[Position](ctx, input.BusinessId, *input.PositionId); err != nil {
			return nil, errors.New("position not found")
		}
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		BusinessId: input.BusinessId,
		Username:   username,
		Name:       strings.TrimSpace(input.Name),
		Email:      utils.NilIfEmpty(email),
		Phone:      input.Phone,
		Password:   string(hashedPassword),
		IsActive:   utils.NewTrue(),
		Role:       input.Role,
		TeamId:     input.TeamId,
		PositionId: input.PositionId,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, errors.New("duplicate username or email")
		}
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return fetchModel[User](ctx, config.GetDB(), businessId, id)
}

// ListUsers returns active users of the business, optionally narrowed to roles.
func ListUsers(ctx context.Context, roles ...UserRole) ([]*User, error) {
	businessId, err := businessIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("business_id = ? AND is_active = ?", businessId, true)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	var results []*User
	if err := q.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// requireUserWithRole checks userId belongs to the business and holds one of roles.
func requireUserWithRole(tx *gorm.DB, businessId string, userId int, roles ...UserRole) (*User, error) {
	var user User
	err := tx.Where("business_id = ? AND id = ?", businessId, userId).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if !utils.DereferencePtr(user.IsActive) {
		return nil, ErrInvalidAssignee
	}
	if len(roles) == 0 {
		return &user, nil
	}
	for _, r := range roles {
		if user.Role == r {
			return &user, nil
		}
	}
	return nil, ErrInvalidAssignee
}

// GetUsersByIds is the batch function behind the user dataloader.
func GetUsersByIds(ctx context.Context, businessId string, ids []int) ([]*User, error) {
	var results []*User
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Find(&results).Error
	return results, err
}
