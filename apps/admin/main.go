package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	cli := commandLine{validate: validate}

	switch conf.Database.Engine {
	case core.EnginePostgres:
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()

		cli.db = db.DB
		cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db), nil, conf)
		cli.schoolSvc = school.NewService(sqlxrepos.NewSchoolRepository(db))
	default:
		logger.Printf("warning: the %q engine does not persist changes made here", conf.Database.Engine)
		db := inmemdb.NewDB()
		cli.usrSvc = user.NewService(inmemdb.NewUserRepository(db), nil, conf)
		cli.schoolSvc = school.NewService(inmemdb.NewSchoolRepository(db))
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db := cli.db
		if db != nil {
			_ = db.Close()
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
