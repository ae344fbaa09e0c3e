// Healthlog - personal health tracking service
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/healthlog/healthlog/internal/api"
	"github.com/healthlog/healthlog/internal/auth"
	"github.com/healthlog/healthlog/internal/config"
	"github.com/healthlog/healthlog/internal/database"
	"github.com/healthlog/healthlog/internal/field"
	"github.com/healthlog/healthlog/internal/logging"
	"github.com/healthlog/healthlog/internal/mail"
	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/record"
	"github.com/healthlog/healthlog/internal/report"
)

var Version = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		runCLI()
		return
	}
	startServer()
}

func startServer() {
	fmt.Printf("Healthlog %s - Starting...\n", Version)

	cfg := loadConfig()
	zlog := newLogger(cfg)
	defer zlog.Sync()

	db := connectDB(cfg)
	zlog.Info("database connected")

	if err := database.RunMigrations(db, zlog); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	zlog.Info("migrations complete")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	jwtService := auth.NewJWTService(cfg.Auth)
	refreshStore := auth.NewRefreshStore(rdb, cfg.Auth.RefreshTTL)
	mailer := mail.NewMailer(cfg.Mail, zlog)

	fieldService := field.NewService(db, zlog)
	recordService := record.NewService(db, zlog)
	reportService := report.NewGormService(db, zlog)

	handler := api.NewHandler(db, jwtService, zlog)
	authHandler := api.NewAuthHandler(db, jwtService, refreshStore, mailer, zlog)
	fieldHandler := api.NewFieldHandler(fieldService)
	recordHandler := api.NewRecordHandler(recordService, fieldService)
	reportHandler := api.NewReportHandler(reportService)
	router := api.SetupRouter(cfg, handler, authHandler, fieldHandler, recordHandler, reportHandler)

	zlog.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	zlog, err := logging.New(cfg.Log.Level, cfg.Log.Format, "healthlog")
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	return zlog
}

func connectDB(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

// CLI
func runCLI() {
	cmd := os.Args[1]
	switch cmd {
	case "serve":
		startServer()
	case "migrate":
		cfg := loadConfig()
		zlog := newLogger(cfg)
		if err := database.RunMigrations(connectDB(cfg), zlog); err != nil {
			zlog.Fatal("migration failed", zap.Error(err))
		}
		fmt.Println("Migrations complete")
	case "user":
		runUserCmd()
	case "field":
		runFieldCmd()
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: healthlog <command>
Commands:
  serve                                  Start server
  migrate                                Run migrations
  user list                              List users
  user create --email= --password= [--role=ADMIN]  Create user
  field list                             List field definitions
  field create --name= --type= [--unit=] [--required] [--options=a,b]  Create field`)
}

func runUserCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := connectDB(loadConfig())
	switch os.Args[2] {
	case "list":
		var users []models.User
		db.Order("id ASC").Find(&users)
		for _, u := range users {
			fmt.Printf("%d  %s  %s\n", u.ID, u.Email, u.Role)
		}
	case "create":
		email := getFlag("--email")
		password := getFlag("--password")
		if email == "" || password == "" {
			printUsage()
			return
		}
		role := getFlag("--role")
		if role == "" {
			role = models.RoleUser
		}
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		now := time.Now()
		if err := db.Create(&models.User{
			Email:           email,
			PasswordHash:    string(hash),
			Role:            role,
			IsActive:        true,
			EmailVerifiedAt: &now,
		}).Error; err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Printf("User created: %s\n", email)
	default:
		printUsage()
	}
}

func runFieldCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	db := connectDB(loadConfig())
	switch os.Args[2] {
	case "list":
		var defs []models.FieldDefinition
		db.Order("id ASC").Find(&defs)
		for _, d := range defs {
			status := "active"
			if !d.IsActive {
				status = "inactive"
			}
			fmt.Printf("%d  %s  %s  %s\n", d.ID, d.Name, d.DataType, status)
		}
	case "create":
		name := getFlag("--name")
		dataType := getFlag("--type")
		if name == "" || dataType == "" {
			printUsage()
			return
		}
		def := models.FieldDefinition{
			Name:       name,
			DataType:   strings.ToUpper(dataType),
			Unit:       getFlag("--unit"),
			IsRequired: hasFlag("--required"),
			IsActive:   true,
		}
		if options := getFlag("--options"); options != "" {
			def.Options = pq.StringArray(strings.Split(options, ","))
		}
		if err := db.Create(&def).Error; err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Printf("Field created: %s\n", name)
	default:
		printUsage()
	}
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
			return arg[len(prefix):]
		}
	}
	return ""
}

func hasFlag(name string) bool {
	for _, arg := range os.Args {
		if arg == name {
			return true
		}
	}
	return false
}
