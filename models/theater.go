package models

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/utils"
)

// Theater is the tenant record. Every other row in the system is owned by
// exactly one theater and all reads/writes are scoped by its id.
type Theater struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"` // uuid
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Timezone  string    `gorm:"size:64;default:null" json:"timezone"`
	Active    *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTheater struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
}

// OrderNumberPrefix derives the two-character order-number prefix from the
// display name; ids fill in when the name has no usable letters.
func (t Theater) OrderNumberPrefix() string {
	return derivePrefix(t.Name, t.ID)
}

func derivePrefix(name string, id string) string {
	letters := make([]rune, 0, 2)
	for _, r := range name {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 2 {
				return string(letters)
			}
		}
	}
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 2 {
				return string(letters)
			}
		}
	}
	for len(letters) < 2 {
		letters = append(letters, 'X')
	}
	return string(letters)
}

func CreateTheater(ctx context.Context, input *NewTheater) (*Theater, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, utils.NewError(utils.ErrInvalidInput, "theater name is required")
	}

	theater := Theater{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(input.Name),
		Timezone: input.Timezone,
		Active:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&theater).Error; err != nil {
		return nil, err
	}
	return &theater, nil
}

func GetTheaterById(ctx context.Context, theaterId string) (*Theater, error) {
	if theaterId == "" {
		return nil, errors.New("theater id is required")
	}

	// cached; theaters change rarely
	var cached *Theater
	exists, err := config.GetRedisObject("Theater:"+theaterId, &cached)
	if err == nil && exists && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var theater Theater
	if err := db.WithContext(ctx).Where("id = ?", theaterId).First(&theater).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	_ = config.SetRedisObject("Theater:"+theaterId, &theater, utils.GetCacheLifespan())
	return &theater, nil
}

func GetAllTheaters(ctx context.Context) ([]*Theater, error) {
	db := config.GetDB()
	var theaters []*Theater
	if err := db.WithContext(ctx).Where("active = true").Order("name").Find(&theaters).Error; err != nil {
		return nil, err
	}
	return theaters, nil
}

func UpdateTheater(ctx context.Context, theaterId string, input *NewTheater) (*Theater, error) {
	db := config.GetDB()
	var theater Theater
	if err := db.WithContext(ctx).Where("id = ?", theaterId).First(&theater).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	updates := map[string]interface{}{}
	if strings.TrimSpace(input.Name) != "" {
		updates["name"] = strings.TrimSpace(input.Name)
	}
	if input.Timezone != "" {
		updates["timezone"] = input.Timezone
	}
	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(&theater).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	_ = config.RemoveRedisKey("Theater:" + theaterId)
	return &theater, nil
}
