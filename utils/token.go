package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// IntakeClaims binds a public lead form to one campaign of one business.
type IntakeClaims struct {
	CampaignId int    `json:"campaign_id"`
	BusinessId string `json:"business_id"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("Leads-Secret")
	}
	return []byte(secret)
}

func intakeTokenLifespan() time.Duration {
	days, err := strconv.Atoi(os.Getenv("INTAKE_TOKEN_DAYS"))
	if err != nil || days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

func GenerateIntakeToken(campaignId int, businessId string) (string, time.Time, error) {
	if campaignId <= 0 || businessId == "" {
		return "", time.Time{}, errors.New("campaign id and business id are required")
	}
	now := time.Now()
	expiresAt := now.Add(intakeTokenLifespan())
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &IntakeClaims{
		CampaignId: campaignId,
		BusinessId: businessId,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
			Subject:   "lead-intake",
		},
	})
	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func ValidateIntakeToken(token string) (*IntakeClaims, error) {
	claims := &IntakeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return getJwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject != "lead-intake" {
		return nil, errors.New("invalid intake token")
	}
	if claims.CampaignId <= 0 || claims.BusinessId == "" {
		return nil, errors.New("invalid intake token")
	}
	return claims, nil
}
