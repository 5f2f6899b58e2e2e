package database

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/mysql"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// Database is the durable store shared by watchers, the approval writer and
// cancelers. All writes are idempotent upserts so that any number of worker
// instances can run over the same store and crash-restart at any point.
type Database interface {
	Init() error

	LoadBlockHeight(chain string) (int64, error)
	SaveBlockHeight(chain string, height int64) error

	// UpsertObservedDeposit stores a durably observed deposit keyed by
	// (sourceChain, nonce). Re-inserting an already-seen nonce is a no-op.
	UpsertObservedDeposit(dep *types.ObservedDeposit) error
	GetObservedDeposit(chain string, nonce uint64) (*types.ObservedDeposit, error)
	// GetReadyDeposits returns observed deposits whose next retry time has
	// passed, oldest first.
	GetReadyDeposits(now int64, limit int) ([]*types.ObservedDeposit, error)
	UpdateDepositStatus(chain string, nonce uint64, status string) error
	RecordDepositFailure(chain string, nonce uint64, attempts int, nextRetry int64, lastError string) error

	UpsertSubmittedApproval(approval *types.SubmittedApproval) error
	GetSubmittedApproval(destChain string, hash common.Hash) (*types.SubmittedApproval, error)
}

type DefaultDatabase struct {
	cfg *config.Config
	db  *sql.DB
}

type dbLogger struct {
}

func (logger *dbLogger) Printf(format string, v ...interface{}) {
	log.Infof(format, v...)
}

func (logger *dbLogger) Verbose() bool {
	return true
}

// NewDb returns a MySQL-backed store, or an in-memory one when the config
// asks for it (used in tests and local runs).
func NewDb(cfg *config.Config) Database {
	if cfg.InMemory {
		return newInMemoryDb()
	}

	return &DefaultDatabase{cfg: cfg}
}

func (d *DefaultDatabase) Connect() error {
	host := d.cfg.DbHost
	if host == "" {
		return fmt.Errorf("DB host cannot be empty")
	}

	username := d.cfg.DbUsername
	password := d.cfg.DbPassword
	schema := d.cfg.DbSchema

	url := fmt.Sprintf("%s:%s@tcp(%s:%d)/", username, password, host, d.cfg.DbPort)
	database, err := sql.Open("mysql", url)
	if err != nil {
		return err
	}
	_, err = database.Exec("CREATE DATABASE IF NOT EXISTS " + schema)
	if err != nil {
		return err
	}
	database.Close()

	database, err = sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", username, password,
		host, d.cfg.DbPort, schema))
	if err != nil {
		return err
	}

	d.db = database
	log.Info("Db is connected successfully")
	return nil
}

func (d *DefaultDatabase) DoMigration() error {
	driver, err := mysql.WithInstance(d.db, &mysql.Config{})
	if err != nil {
		return err
	}

	migrationDir, err := MigrationsTempDir()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationDir,
		"mysql",
		driver,
	)
	if err != nil {
		return err
	}

	m.Log = &dbLogger{}
	m.Up()

	return nil
}

func (d *DefaultDatabase) Init() error {
	err := d.Connect()
	if err != nil {
		log.Error("Failed to connect to DB. Err = ", err)
		return err
	}

	return d.DoMigration()
}

func (d *DefaultDatabase) LoadBlockHeight(chain string) (int64, error) {
	rows, err := d.db.Query("SELECT block_height FROM latest_block_height WHERE chain=?", chain)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, nil
	}

	var blockHeight int64
	switch err := rows.Scan(&blockHeight); err {
	case nil:
		return blockHeight, nil
	default:
		return 0, err
	}
}

func (d *DefaultDatabase) SaveBlockHeight(chain string, height int64) error {
	_, err := d.db.Exec(
		"INSERT INTO latest_block_height (chain, block_height) VALUES (?, ?) ON DUPLICATE KEY UPDATE block_height=?",
		chain, height, height)

	return err
}

func (d *DefaultDatabase) UpsertObservedDeposit(dep *types.ObservedDeposit) error {
	_, err := d.db.Exec(
		`INSERT IGNORE INTO observed_deposits
			(source_chain, nonce, deposit_hash, dest_chain_key, dest_token, dest_account,
			 from_addr, amount, block_height, status, attempts, next_retry, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '')`,
		dep.SourceChain, dep.Nonce, dep.DepositHash.Hex(), dep.DestChainKey.Hex(),
		dep.DestTokenAddress.Hex(), dep.DestAccount.Hex(), dep.From, dep.Amount.String(),
		dep.BlockHeight, dep.Status)

	return err
}

func (d *DefaultDatabase) GetObservedDeposit(chain string, nonce uint64) (*types.ObservedDeposit, error) {
	rows, err := d.db.Query(depositSelect+" WHERE source_chain=? AND nonce=?", chain, nonce)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	return scanDeposit(rows)
}

const depositSelect = `SELECT source_chain, nonce, deposit_hash, dest_chain_key, dest_token,
	dest_account, from_addr, amount, block_height, status, attempts, next_retry, last_error
	FROM observed_deposits`

func scanDeposit(rows *sql.Rows) (*types.ObservedDeposit, error) {
	dep := &types.ObservedDeposit{}
	var depositHash, destChainKey, destToken, destAccount, amount string

	err := rows.Scan(&dep.SourceChain, &dep.Nonce, &depositHash, &destChainKey, &destToken,
		&destAccount, &dep.From, &amount, &dep.BlockHeight, &dep.Status, &dep.Attempts,
		&dep.NextRetry, &dep.LastError)
	if err != nil {
		return nil, err
	}

	dep.DepositHash = common.HexToHash(depositHash)
	dep.DestChainKey = common.HexToHash(destChainKey)
	dep.DestTokenAddress = common.HexToHash(destToken)
	dep.DestAccount = common.HexToHash(destAccount)

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %s for deposit (%s, %d)", amount, dep.SourceChain, dep.Nonce)
	}
	dep.Amount = value

	return dep, nil
}

func (d *DefaultDatabase) GetReadyDeposits(now int64, limit int) ([]*types.ObservedDeposit, error) {
	rows, err := d.db.Query(
		depositSelect+" WHERE status=? AND next_retry<=? ORDER BY block_height ASC LIMIT ?",
		types.DepositStatusObserved, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := make([]*types.ObservedDeposit, 0)
	for rows.Next() {
		dep, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, dep)
	}

	return deposits, nil
}

func (d *DefaultDatabase) UpdateDepositStatus(chain string, nonce uint64, status string) error {
	_, err := d.db.Exec("UPDATE observed_deposits SET status=? WHERE source_chain=? AND nonce=?",
		status, chain, nonce)

	return err
}

func (d *DefaultDatabase) RecordDepositFailure(chain string, nonce uint64, attempts int,
	nextRetry int64, lastError string) error {

	if len(lastError) > 512 {
		lastError = lastError[:512]
	}

	_, err := d.db.Exec(
		"UPDATE observed_deposits SET attempts=?, next_retry=?, last_error=? WHERE source_chain=? AND nonce=?",
		attempts, nextRetry, lastError, chain, nonce)

	return err
}

func (d *DefaultDatabase) UpsertSubmittedApproval(approval *types.SubmittedApproval) error {
	_, err := d.db.Exec(
		`INSERT INTO submitted_approvals
			(dest_chain, withdraw_hash, source_chain, nonce, status, attempts, next_retry, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE status=VALUES(status), attempts=VALUES(attempts),
			next_retry=VALUES(next_retry), last_error=VALUES(last_error)`,
		approval.DestChain, approval.WithdrawHash.Hex(), approval.SourceChain, approval.Nonce,
		approval.Status, approval.Attempts, approval.NextRetry, approval.LastError)

	return err
}

func (d *DefaultDatabase) GetSubmittedApproval(destChain string, hash common.Hash) (*types.SubmittedApproval, error) {
	rows, err := d.db.Query(
		`SELECT dest_chain, withdraw_hash, source_chain, nonce, status, attempts, next_retry, last_error
		 FROM submitted_approvals WHERE dest_chain=? AND withdraw_hash=?`,
		destChain, hash.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	approval := &types.SubmittedApproval{}
	var withdrawHash string
	err = rows.Scan(&approval.DestChain, &withdrawHash, &approval.SourceChain, &approval.Nonce,
		&approval.Status, &approval.Attempts, &approval.NextRetry, &approval.LastError)
	if err != nil {
		return nil, err
	}

	approval.WithdrawHash = common.HexToHash(withdrawHash)
	return approval, nil
}
