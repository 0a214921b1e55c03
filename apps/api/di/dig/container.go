package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/directory"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/support"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/cache"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
	"github.com/trezcool/shule/storage/files"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closers collects the resources released on shutdown, in reverse order of registration.
type Closers struct {
	mu  sync.Mutex
	fns []func() error
}

func newClosers() *Closers { return new(Closers) }

func (c *Closers) add(fn func() error) {
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

func (c *Closers) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.fns = nil
	return firstErr
}

func newLogger(conf *core.Config, closers *Closers) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	closers.add(logger.Close) // flushes pending Rollbar items
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate
}

// Repositories are backed by the engine named in the database config.
type Repositories struct {
	dig.Out

	Users         user.Repository
	Schools       school.Repository
	Departments   department.Repository
	Teachers      teacher.Repository
	Students      student.Repository
	Fees          fee.Repository
	Registrations registration.Repository
	Tickets       support.Repository
	Tx            core.Transactor
}

func newRepositories(conf *core.Config, closers *Closers, loggerParam DBLoggerParam) Repositories {
	dbLogger := loggerParam.Logger

	switch conf.Database.Engine {
	case core.EngineMemory:
		dbLogger.Info("using the in-memory database")
		db := inmemdb.NewDB()
		return Repositories{
			Users:         inmemdb.NewUserRepository(db),
			Schools:       inmemdb.NewSchoolRepository(db),
			Departments:   inmemdb.NewDepartmentRepository(db),
			Teachers:      inmemdb.NewTeacherRepository(db),
			Students:      inmemdb.NewStudentRepository(db),
			Fees:          inmemdb.NewFeeRepository(db),
			Registrations: inmemdb.NewRegistrationRepository(db),
			Tickets:       inmemdb.NewSupportRepository(db),
			Tx:            db,
		}

	case core.EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			dbLogger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = database.Migrate(db.DB); err != nil {
			dbLogger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		closers.add(db.Close)

		return Repositories{
			Users:         sqlxrepos.NewUserRepository(db),
			Schools:       sqlxrepos.NewSchoolRepository(db),
			Departments:   sqlxrepos.NewDepartmentRepository(db),
			Teachers:      sqlxrepos.NewTeacherRepository(db),
			Students:      sqlxrepos.NewStudentRepository(db),
			Fees:          sqlxrepos.NewFeeRepository(db),
			Registrations: sqlxrepos.NewRegistrationRepository(db),
			Tickets:       sqlxrepos.NewSupportRepository(db),
			Tx:            database.NewTransactor(db),
		}

	default:
		err := errors.Errorf("unknown database engine %q", conf.Database.Engine)
		dbLogger.Fatal(err.Error(), err)
		return Repositories{}
	}
}

func newCache(conf *core.Config, closers *Closers, logger core.Logger) directory.Cache {
	if conf.Redis.Addr == "" {
		return cache.NewMemoryCache()
	}
	rc, err := cache.NewRedisCache(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	closers.add(rc.Close)
	return rc
}

func newDocumentStore(conf *core.Config, logger core.Logger) registration.DocumentStore {
	root := conf.Storage.DocumentsDir
	if !filepath.IsAbs(root) {
		root = filepath.Join(conf.WorkDir, root)
	}
	store, err := files.NewLocalStore(root)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up document storage: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newDepartmentService(repo department.Repository, schools school.Service) department.Service {
	return department.NewService(repo, schools)
}

func newTeacherService(repo teacher.Repository, schools school.Service, departments department.Service) teacher.Service {
	return teacher.NewService(repo, schools, departments)
}

func newStudentService(repo student.Repository, schools school.Service, departments department.Service) student.Service {
	return student.NewService(repo, schools, departments)
}

func newFeeService(repo fee.Repository, schools school.Service) fee.Service {
	return fee.NewService(repo, schools)
}

type registrationParams struct {
	dig.In

	Conf     *core.Config
	Repo     registration.Repository
	Docs     registration.DocumentStore
	Tx       core.Transactor
	Schools  school.Service
	Students student.Service
	MailSvc  core.EmailService
	Logger   core.Logger
}

func newRegistrationService(p registrationParams) registration.Service {
	return registration.NewService(registration.Deps{
		Repo:     p.Repo,
		Docs:     p.Docs,
		Tx:       p.Tx,
		Schools:  p.Schools,
		Students: p.Students,
		MailSvc:  p.MailSvc,
		Logger:   p.Logger,
	}, p.Conf)
}

type directoryParams struct {
	dig.In

	Conf     *core.Config
	Users    user.Service
	Schools  school.Service
	Teachers teacher.Service
	Cache    directory.Cache
	Logger   core.Logger
}

func newDirectoryService(p directoryParams) directory.Service {
	return directory.NewService(directory.Deps{
		Users:    p.Users,
		Schools:  p.Schools,
		Teachers: p.Teachers,
		Cache:    p.Cache,
		Logger:   p.Logger,
	}, p.Conf)
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc         user.Service
	SchoolSvc       school.Service
	DepartmentSvc   department.Service
	TeacherSvc      teacher.Service
	StudentSvc      student.Service
	FeeSvc          fee.Service
	RegistrationSvc registration.Service
	SupportSvc      support.Service
	DirectorySvc    directory.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		SchoolSvc:       p.SchoolSvc,
		DepartmentSvc:   p.DepartmentSvc,
		TeacherSvc:      p.TeacherSvc,
		StudentSvc:      p.StudentSvc,
		FeeSvc:          p.FeeSvc,
		RegistrationSvc: p.RegistrationSvc,
		SupportSvc:      p.SupportSvc,
		DirectorySvc:    p.DirectorySvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newClosers))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRepositories))
	must(c.Provide(newCache))
	must(c.Provide(newDocumentStore))
	must(c.Provide(newEmailService))

	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(newDepartmentService))
	must(c.Provide(newTeacherService))
	must(c.Provide(newStudentService))
	must(c.Provide(newFeeService))
	must(c.Provide(newRegistrationService))
	must(c.Provide(support.NewService))
	must(c.Provide(newDirectoryService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
