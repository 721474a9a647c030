package tests

import (
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/trackwise/apps/api/echo"
	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/room"
	"github.com/trezcool/trackwise/core/study"
	"github.com/trezcool/trackwise/core/user"
	botsvc "github.com/trezcool/trackwise/services/bot"
	logsvc "github.com/trezcool/trackwise/services/logger"
	inmemdb "github.com/trezcool/trackwise/storage/database/inmem"
)

var (
	app      Server
	conf     *core.Config
	usrRepo  user.Repository
	usrSvc   user.ServiceInterface
	registry *room.Registry
)

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.TokenExpirationDelta = 30 * 24 * time.Hour

	logger := logsvc.NewConsoleLogger()

	// in-memory stores; each test isolates itself behind its own users
	usrRepo = inmemdb.NewUserRepository()
	usrSvc = user.NewService(usrRepo, conf)
	studySvc := study.NewService(
		inmemdb.NewTaskRepository(),
		inmemdb.NewNoteRepository(),
		inmemdb.NewReminderRepository(),
		inmemdb.NewProgressRepository(),
		logger,
	)
	registry = room.NewRegistry(logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	app = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		StudySvc:   studySvc,
		Registry:   registry,
		BotSvc:     botsvc.NewDummyService(),
		Validate:   validate,
		Translator: translator,
	})

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
