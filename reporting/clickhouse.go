package reporting

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/tebeka/atexit"
)

// A ClickHouseConn locates one ClickHouse database.
type ClickHouseConn struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ParseClickHouseConn parses a connection string of the form
// clickhouse://host:9000/database?username=default&password=secret. Database
// and username fall back to "default" when omitted.
func ParseClickHouseConn(connStr string) (ClickHouseConn, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return ClickHouseConn{}, fmt.Errorf("parsing %s: %w", connStr, err)
	}

	if u.Scheme != "clickhouse" {
		return ClickHouseConn{}, fmt.Errorf(
			"connection string %s does not use the clickhouse scheme", connStr)
	}

	if u.Host == "" {
		return ClickHouseConn{}, fmt.Errorf(
			"connection string %s names no host", connStr)
	}

	conn := ClickHouseConn{
		Addr:     u.Host,
		Database: strings.TrimPrefix(u.Path, "/"),
		Username: u.Query().Get("username"),
		Password: u.Query().Get("password"),
	}

	if conn.Database == "" {
		conn.Database = "default"
	}

	if conn.Username == "" {
		conn.Username = "default"
	}

	return conn, nil
}

// NewClickHouseRecorder creates a DataRecorder that streams report entries
// into a ClickHouse database, for runs whose reports must land in shared
// storage instead of a local file. A zero batchSize picks the default.
func NewClickHouseRecorder(conn ClickHouseConn, batchSize int) DataRecorder {
	if batchSize == 0 {
		batchSize = 100000
	}

	ch, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{conn.Addr},
		Auth: clickhouse.Auth{
			Database: conn.Database,
			Username: conn.Username,
			Password: conn.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := ch.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	w := &clickhouseWriter{
		conn:      ch,
		batchSize: batchSize,
		tables:    make(map[string]chTable),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type chTable int

const (
	chTableRun chTable = iota
	chTableBanking
	chTablePort
	chTableDispatch
)

// clickhouseWriter batches entries per table type and ships them with bulk
// inserts. Unlike the sqlite writer it knows the report schema, so inserts
// stay free of reflection.
type clickhouseWriter struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	runBatch      []RunEntry
	bankingBatch  []BankingEntry
	portBatch     []PortEntry
	dispatchBatch []DispatchEntry

	tables     map[string]chTable
	entryCount int
}

func (w *clickhouseWriter) CreateTable(tableName string, sampleEntry any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var createSQL string

	var t chTable

	switch sampleEntry.(type) {
	case RunEntry:
		t = chTableRun
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Property String,
				Value String
			) ENGINE = MergeTree()
			ORDER BY Property
		`, tableName)
	case BankingEntry:
		t = chTableBanking
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Mem String,
				Dup Int64,
				Banks Int64,
				Depth Int64,
				Pipeline String,
				Scheme String,
				Padding String,
				Accum String,
				Resource String,
				Cost Float64
			) ENGINE = MergeTree()
			ORDER BY (Mem, Dup)
		`, tableName)
	case PortEntry:
		t = chTablePort
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Mem String,
				Dup Int64,
				Access String,
				Unroll String,
				BufferStage Int64,
				MuxSlot Int64,
				MuxWidth Int64,
				MuxOffset Int64,
				Broadcast Int64
			) ENGINE = MergeTree()
			ORDER BY (Mem, Dup, Access)
		`, tableName)
	case DispatchEntry:
		t = chTableDispatch
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Mem String,
				Access String,
				Unroll String,
				Dups String,
				Reader Bool
			) ENGINE = MergeTree()
			ORDER BY (Mem, Access)
		`, tableName)
	default:
		panic(fmt.Sprintf("unsupported entry type: %T", sampleEntry))
	}

	if err := w.conn.Exec(context.Background(), createSQL); err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	w.tables[tableName] = t
}

func (w *clickhouseWriter) InsertData(tableName string, entry any) {
	w.mu.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	switch t {
	case chTableRun:
		w.runBatch = append(w.runBatch,
			mustEntry[RunEntry](tableName, entry))
	case chTableBanking:
		w.bankingBatch = append(w.bankingBatch,
			mustEntry[BankingEntry](tableName, entry))
	case chTablePort:
		w.portBatch = append(w.portBatch,
			mustEntry[PortEntry](tableName, entry))
	case chTableDispatch:
		w.dispatchBatch = append(w.dispatchBatch,
			mustEntry[DispatchEntry](tableName, entry))
	}

	w.entryCount++

	if w.entryCount >= w.batchSize {
		w.mu.Unlock()
		w.Flush()

		return
	}

	w.mu.Unlock()
}

func mustEntry[T any](tableName string, entry any) T {
	e, ok := entry.(T)
	if !ok {
		panic(fmt.Sprintf("table %s cannot hold %T", tableName, entry))
	}

	return e
}

func (w *clickhouseWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	return tables
}

func (w *clickhouseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, t := range w.tables {
		switch t {
		case chTableRun:
			if len(w.runBatch) > 0 {
				w.flushRun(ctx, tableName)
			}
		case chTableBanking:
			if len(w.bankingBatch) > 0 {
				w.flushBanking(ctx, tableName)
			}
		case chTablePort:
			if len(w.portBatch) > 0 {
				w.flushPorts(ctx, tableName)
			}
		case chTableDispatch:
			if len(w.dispatchBatch) > 0 {
				w.flushDispatch(ctx, tableName)
			}
		}
	}

	w.entryCount = 0
}

func (w *clickhouseWriter) flushRun(ctx context.Context, tableName string) {
	batch := w.prepareBatch(ctx, tableName)

	for _, e := range w.runBatch {
		mustAppend(batch, e.Property, e.Value)
	}

	mustSend(batch)

	w.runBatch = w.runBatch[:0]
}

func (w *clickhouseWriter) flushBanking(ctx context.Context, tableName string) {
	batch := w.prepareBatch(ctx, tableName)

	for _, e := range w.bankingBatch {
		mustAppend(batch,
			e.Mem,
			int64(e.Dup),
			int64(e.Banks),
			int64(e.Depth),
			e.Pipeline,
			e.Scheme,
			e.Padding,
			e.Accum,
			e.Resource,
			e.Cost,
		)
	}

	mustSend(batch)

	w.bankingBatch = w.bankingBatch[:0]
}

func (w *clickhouseWriter) flushPorts(ctx context.Context, tableName string) {
	batch := w.prepareBatch(ctx, tableName)

	for _, e := range w.portBatch {
		mustAppend(batch,
			e.Mem,
			int64(e.Dup),
			e.Access,
			e.Unroll,
			int64(e.BufferStage),
			int64(e.MuxSlot),
			int64(e.MuxWidth),
			int64(e.MuxOffset),
			int64(e.Broadcast),
		)
	}

	mustSend(batch)

	w.portBatch = w.portBatch[:0]
}

func (w *clickhouseWriter) flushDispatch(
	ctx context.Context,
	tableName string,
) {
	batch := w.prepareBatch(ctx, tableName)

	for _, e := range w.dispatchBatch {
		mustAppend(batch, e.Mem, e.Access, e.Unroll, e.Dups, e.Reader)
	}

	mustSend(batch)

	w.dispatchBatch = w.dispatchBatch[:0]
}

func (w *clickhouseWriter) prepareBatch(
	ctx context.Context,
	tableName string,
) driver.Batch {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	return batch
}

func mustAppend(batch driver.Batch, values ...any) {
	if err := batch.Append(values...); err != nil {
		panic(fmt.Errorf("failed to append to batch: %w", err))
	}
}

func mustSend(batch driver.Batch) {
	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}
}
