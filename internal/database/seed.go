package database

import (
	"log"
	"time"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// rosterEntry is one compiled-in plant user. Passwords are hashed on seed;
// the plaintext values here match the credentials handed to each team.
type rosterEntry struct {
	Username string
	Password string
	Name     string
	Role     model.Role
}

var staticRoster = []rosterEntry{
	{"prod1", "prod123", "John Production", model.RoleProduction},
	{"prod2", "prod123", "Jane Production", model.RoleProduction},
	{"store1", "store123", "Mike Stores", model.RoleStores},
	{"store2", "store123", "Lisa Stores", model.RoleStores},
	{"qa1", "qa123", "Sarah QA", model.RoleQA},
	{"qa2", "qa123", "David QA", model.RoleQA},
	{"hod1", "hod123", "Robert HOD", model.RoleHOD},
	{"admin", "admin123", "Admin User", model.RoleAdmin},
}

var sampleProducts = []model.Product{
	{Name: "Paracetamol Tablets 500mg", BatchNo: "PCT001", LineNo: "Line-A1"},
	{Name: "Amoxicillin Capsules 250mg", BatchNo: "AMX002", LineNo: "Line-B2"},
	{Name: "Ibuprofen Tablets 400mg", BatchNo: "IBU003", LineNo: "Line-A1"},
	{Name: "Metformin Tablets 850mg", BatchNo: "MET004", LineNo: "Line-C3"},
	{Name: "Omeprazole Capsules 20mg", BatchNo: "OME005", LineNo: "Line-B2"},
	{Name: "Aspirin Tablets 75mg", BatchNo: "ASP006", LineNo: "Line-A1"},
}

// Seed inserts the static user roster and the sample product catalog when
// their tables are empty. Re-running against a populated database is a no-op.
func Seed(db *gorm.DB) error {
	var userCount int64
	if err := db.Model(&model.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount == 0 {
		for _, entry := range staticRoster {
			hash, err := bcrypt.GenerateFromPassword([]byte(entry.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := model.User{
				ID:       uuid.New(),
				Username: entry.Username,
				Name:     entry.Name,
				Password: string(hash),
				Role:     entry.Role,
			}
			if err := db.Create(&user).Error; err != nil {
				return err
			}
		}
		log.Printf("Seeded %d roster users", len(staticRoster))
	}

	var productCount int64
	if err := db.Model(&model.Product{}).Count(&productCount).Error; err != nil {
		return err
	}
	if productCount == 0 {
		now := time.Now()
		for _, p := range sampleProducts {
			p.ID = uuid.New()
			p.CreatedAt = now
			if err := db.Create(&p).Error; err != nil {
				return err
			}
		}
		log.Printf("Seeded %d sample products", len(sampleProducts))
	}

	return nil
}
