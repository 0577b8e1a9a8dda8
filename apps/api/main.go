package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/ensinoverso/backend/apps/api/echo"
	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
	aisvc "github.com/ensinoverso/backend/services/ai"
	emailsvc "github.com/ensinoverso/backend/services/email"
	logsvc "github.com/ensinoverso/backend/services/logger"
	"github.com/ensinoverso/backend/storage/database"
	sqlxrepos "github.com/ensinoverso/backend/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	db, err := setUpDB(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc)
	schSvc := school.NewService(sqlxrepos.NewSchoolRepository(db))
	lesSvc := lesson.NewService(sqlxrepos.NewLessonRepository(db), usrRepo, aisvc.NewGeminiService(core.Conf), mailSvc)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	lesson.RegisterValidators(validate, translator)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        fmt.Sprintf("%s:%s", core.Conf.Server.Host, core.Conf.Server.Port),
		UserSvc:        usrSvc,
		SchoolSvc:      schSvc,
		LessonSvc:      lesSvc,
		Validate:       validate,
		Translator:     translator,
		Logger:         logger,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
