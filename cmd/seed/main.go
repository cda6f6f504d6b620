// Command seed rebuilds the survey dictionary tables from the survey
// definition file. Respondent data is left untouched, so it is safe to
// re-run after editing the definition.
package main

import (
	"context"

	"go.uber.org/zap"

	"cityforall/internal/config"
	"cityforall/internal/repository"
	"cityforall/internal/survey"
)

func main() {
	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	graph, err := survey.Load(cfg.SurveyFile)
	if err != nil {
		log.Fatal("load survey definition", zap.String("file", cfg.SurveyFile), zap.Error(err))
	}

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	stats, err := repository.NewDictionarySeeder(db).Rebuild(ctx, graph)
	if err != nil {
		log.Fatal("rebuild dictionary", zap.Error(err))
	}

	log.Info("dictionary rebuilt",
		zap.Int("modules", stats.Modules),
		zap.Int("questions", stats.Questions),
		zap.Int("answers", stats.Answers),
		zap.Int("groupLinks", stats.GroupLinks),
		zap.Int("qaLinks", stats.QALinks),
	)
}
