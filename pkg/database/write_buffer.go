package database

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// WriteBuffer batches account writes into one transaction per flush
type WriteBuffer struct {
	db            *DB
	flushInterval time.Duration

	// Account creation
	createMu      sync.Mutex
	creates       []*pendingAccountCreate
	createResults map[int]chan accountCreateResult // index -> result channel

	// Login address posts
	ipMu    sync.Mutex
	ipPosts []pendingIPPost

	// Machine signature posts
	machineMu    sync.Mutex
	machinePosts map[int64]string // accountID -> machine id

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type pendingAccountCreate struct {
	account     NewAccount
	hash        string
	timestamp   int64
	resultIndex int
}

type accountCreateResult struct {
	accountID int64
	err       error
}

type pendingIPPost struct {
	accountID int64
	ip        string
	timestamp int64
}

// NewWriteBuffer creates a write buffer and starts its flush loop
func NewWriteBuffer(db *DB, flushInterval time.Duration) *WriteBuffer {
	wb := &WriteBuffer{
		db:            db,
		flushInterval: flushInterval,
		creates:       make([]*pendingAccountCreate, 0, 16),
		createResults: make(map[int]chan accountCreateResult),
		machinePosts:  make(map[int64]string),
		shutdown:      make(chan struct{}),
	}

	wb.wg.Add(1)
	go wb.flushLoop()

	return wb
}

// CreateAccount queues an insert and waits for the flush that runs it.
// The context only bounds the wait; a queued insert still runs.
func (wb *WriteBuffer) CreateAccount(ctx context.Context, in NewAccount, hash string, timestamp int64) (int64, error) {
	resultChan := make(chan accountCreateResult, 1)

	wb.createMu.Lock()
	resultIndex := len(wb.creates)
	wb.creates = append(wb.creates, &pendingAccountCreate{
		account:     in,
		hash:        hash,
		timestamp:   timestamp,
		resultIndex: resultIndex,
	})
	wb.createResults[resultIndex] = resultChan
	wb.createMu.Unlock()

	select {
	case result := <-resultChan:
		return result.accountID, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// PostAccountIP queues a login address record and last-login update
func (wb *WriteBuffer) PostAccountIP(accountID int64, ip string) {
	wb.ipMu.Lock()
	wb.ipPosts = append(wb.ipPosts, pendingIPPost{accountID: accountID, ip: ip, timestamp: nowMillis()})
	wb.ipMu.Unlock()
}

// PostMachineID queues a machine signature update. Later posts for the
// same account replace earlier ones.
func (wb *WriteBuffer) PostMachineID(accountID int64, machineID string) {
	wb.machineMu.Lock()
	wb.machinePosts[accountID] = machineID
	wb.machineMu.Unlock()
}

func (wb *WriteBuffer) flushLoop() {
	defer wb.wg.Done()

	ticker := time.NewTicker(wb.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wb.flush()
		case <-wb.shutdown:
			wb.flush()
			return
		}
	}
}

// flush writes all buffered updates in a single transaction
func (wb *WriteBuffer) flush() {
	start := time.Now()

	wb.createMu.Lock()
	creates := wb.creates
	createResults := wb.createResults
	wb.creates = make([]*pendingAccountCreate, 0, 16)
	wb.createResults = make(map[int]chan accountCreateResult)
	wb.createMu.Unlock()

	wb.ipMu.Lock()
	ipPosts := wb.ipPosts
	wb.ipPosts = nil
	wb.ipMu.Unlock()

	wb.machineMu.Lock()
	machinePosts := wb.machinePosts
	wb.machinePosts = make(map[int64]string)
	wb.machineMu.Unlock()

	if len(creates) == 0 && len(ipPosts) == 0 && len(machinePosts) == 0 {
		return
	}

	failCreates := func(err error) {
		for _, ch := range createResults {
			ch <- accountCreateResult{err: err}
		}
	}

	tx, err := wb.db.writeConn.Begin()
	if err != nil {
		wb.db.log.Error().Err(err).Msg("write buffer: failed to begin transaction")
		failCreates(err)
		wb.requeue(ipPosts, machinePosts)
		return
	}
	defer tx.Rollback()

	// Creates are answered only after commit so a caller never sees an id
	// that was rolled back
	created := make(map[int]int64, len(creates))
	createErrs := make(map[int]error)

	// 1. Account creation
	if len(creates) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO Account (app_id, name, password_hash, account_type, machine_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			wb.db.log.Error().Err(err).Msg("write buffer: failed to prepare account insert")
			for _, c := range creates {
				createErrs[c.resultIndex] = err
			}
		} else {
			defer stmt.Close()
			for _, c := range creates {
				var machineID sql.NullString
				if c.account.MachineID != "" {
					machineID = sql.NullString{String: c.account.MachineID, Valid: true}
				}

				res, err := stmt.Exec(c.account.AppID, c.account.Name, c.hash, c.account.AccountType, machineID, c.timestamp)
				if isUniqueViolation(err) {
					err = ErrAccountExists
				}
				if err == nil {
					var id int64
					if id, err = res.LastInsertId(); err == nil {
						created[c.resultIndex] = id
						continue
					}
				}
				createErrs[c.resultIndex] = err
			}
		}
	}

	// 2. Login addresses
	if len(ipPosts) > 0 {
		insert, err := tx.Prepare(`INSERT INTO AccountIP (id, account_id, ip, posted_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			wb.db.log.Error().Err(err).Msg("write buffer: failed to prepare address insert")
		} else {
			defer insert.Close()
			for _, p := range ipPosts {
				if _, err := insert.Exec(wb.db.snowflake.NextID(), p.accountID, p.ip, p.timestamp); err != nil {
					wb.db.log.Warn().Err(err).Int64("account", p.accountID).Msg("write buffer: address insert failed")
					continue
				}
				if _, err := tx.Exec(`UPDATE Account SET last_ip = ?, last_login_at = ? WHERE id = ?`,
					p.ip, p.timestamp, p.accountID); err != nil {
					wb.db.log.Warn().Err(err).Int64("account", p.accountID).Msg("write buffer: last login update failed")
				}
			}
		}
	}

	// 3. Machine signatures
	for accountID, machineID := range machinePosts {
		if _, err := tx.Exec(`UPDATE Account SET machine_id = ? WHERE id = ?`, machineID, accountID); err != nil {
			wb.db.log.Warn().Err(err).Int64("account", accountID).Msg("write buffer: machine id update failed")
		}
	}

	if err := tx.Commit(); err != nil {
		wb.db.log.Error().Err(err).Msg("write buffer: failed to commit transaction")
		failCreates(err)
		return
	}

	for idx, ch := range createResults {
		if err, failed := createErrs[idx]; failed {
			ch <- accountCreateResult{err: err}
			continue
		}
		ch <- accountCreateResult{accountID: created[idx]}
	}

	if elapsed := time.Since(start); elapsed > wb.flushInterval {
		wb.db.log.Warn().
			Int("account_create", len(creates)).
			Int("ip_post", len(ipPosts)).
			Int("machine_post", len(machinePosts)).
			Dur("elapsed", elapsed).
			Msg("write buffer: slow flush")
	}
}

// requeue puts fire-and-forget posts back for the next flush
func (wb *WriteBuffer) requeue(ipPosts []pendingIPPost, machinePosts map[int64]string) {
	wb.ipMu.Lock()
	wb.ipPosts = append(ipPosts, wb.ipPosts...)
	wb.ipMu.Unlock()

	wb.machineMu.Lock()
	for id, m := range machinePosts {
		if _, newer := wb.machinePosts[id]; !newer {
			wb.machinePosts[id] = m
		}
	}
	wb.machineMu.Unlock()
}

// Close stops the flush loop after a final flush. It is safe to call more
// than once.
func (wb *WriteBuffer) Close() {
	wb.closeOnce.Do(func() { close(wb.shutdown) })
	wb.wg.Wait()
}
