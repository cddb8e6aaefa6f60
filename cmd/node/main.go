package main

import (
	stdlog "log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"duomarket/params"
	"duomarket/pkg/api"
	"duomarket/pkg/exchange"
	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/store"
	"duomarket/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := cfg.Server.LogFile
	if logFile == "" {
		logFile = "data/node.log"
	}
	os.MkdirAll("data", 0755)

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger initialized", zap.String("log_file", logFile))

	var db *store.Store
	if cfg.Exchange.DataDir != "" {
		db, err = store.Open(cfg.Exchange.DataDir)
		if err != nil {
			logger.Fatal("open store", zap.String("dir", cfg.Exchange.DataDir), zap.Error(err))
		}
		defer db.Close()
		logger.Info("store opened", zap.String("dir", cfg.Exchange.DataDir))
	} else {
		logger.Warn("no data dir configured, running in memory")
	}

	engineCfg := exchange.Config{Store: db}
	if cfg.Exchange.AdminAddress != "" {
		if !common.IsHexAddress(cfg.Exchange.AdminAddress) {
			logger.Fatal("invalid admin address", zap.String("address", cfg.Exchange.AdminAddress))
		}
		engineCfg.Admin = common.HexToAddress(cfg.Exchange.AdminAddress)
	}
	if cfg.Exchange.DeferredSettlement {
		engineCfg.Mode = market.Deferred
	}

	engine := exchange.NewEngine(logger, engineCfg)
	if err := engine.Restore(); err != nil {
		logger.Fatal("restore state", zap.Error(err))
	}

	server := api.NewServer(engine, logger)
	if err := server.Start(cfg.Server.Listen); err != nil {
		logger.Fatal("api server", zap.Error(err))
	}
}
