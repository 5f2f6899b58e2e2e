package main

import (
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/joho/godotenv"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/core"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/database"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/fees"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/network"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/server"
)

func initialize() (*core.Processor, config.Config) {
	if err := godotenv.Load(); err != nil {
		log.Warn("Cannot load .env file, err = ", err)
	}

	cfgPath := os.Getenv("BRIDGE_CONFIG")
	if cfgPath == "" {
		cfgPath = "bridge.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	db := database.NewDb(&cfg)
	if err := db.Init(); err != nil {
		panic(err)
	}

	feeManager := fees.NewFeeManager(cfg.FeeEndpoint, cfg.Tokens, network.NewHttp())

	processor := core.NewProcessor(&cfg, db, feeManager)
	if err := processor.Start(); err != nil {
		panic(err)
	}

	return processor, cfg
}

func run(processor *core.Processor, cfg config.Config) {
	hostChain := cfg.HostChain
	hostedCore := processor.HostedCore(hostChain)
	if hostedCore == nil {
		log.Warn("No hosted bridge core for chain ", hostChain, ", rpc server not started")
		select {}
	}

	handler := rpc.NewServer()
	api := server.NewApi(hostedCore,
		common.HexToAddress(cfg.ApproverAddress),
		common.HexToAddress(cfg.CancelerAddress),
		common.HexToAddress(cfg.OperatorAddress))
	if err := handler.RegisterName("bridge", api); err != nil {
		panic(err)
	}

	s := server.NewServer(handler, cfg.ServerPort)
	s.Run()
}

func main() {
	processor, cfg := initialize()
	run(processor, cfg)
}
