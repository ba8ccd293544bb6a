// Package inspect turns a finished analysis into a small web server, so the
// recorded banking decisions can be browsed without rerunning the compiler.
package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/reporting"
)

// An Inspector serves the decisions of one analysis run over HTTP. It reads
// from a report database and, when one is registered, a live metadata store.
type Inspector struct {
	reader     reporting.DataReader
	store      *ir.Store
	portNumber int
}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// WithPortNumber sets the port number of the inspection server.
func (i *Inspector) WithPortNumber(portNumber int) *Inspector {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the inspection server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	i.portNumber = portNumber

	return i
}

// RegisterReader registers the report database to serve. The decision tables
// are mapped so they can be queried.
func (i *Inspector) RegisterReader(r reporting.DataReader) {
	r.MapTable(reporting.BankingTable, reporting.BankingEntry{})
	r.MapTable(reporting.PortTable, reporting.PortEntry{})
	r.MapTable(reporting.DispatchTable, reporting.DispatchEntry{})
	r.MapTable(reporting.RunInfoTable, reporting.RunEntry{})

	i.reader = r
}

// RegisterStore registers a live metadata store, enabling the value endpoint.
func (i *Inspector) RegisterStore(s *ir.Store) {
	i.store = s
}

// StartServer starts the inspection server and returns its URL.
func (i *Inspector) StartServer() string {
	r := mux.NewRouter()

	r.HandleFunc("/api/tables", i.listTables)
	r.HandleFunc("/api/run", i.listRunInfo)
	r.HandleFunc("/api/banking", i.listBanking)
	r.HandleFunc("/api/ports", i.listPorts)
	r.HandleFunc("/api/dispatch", i.listDispatch)
	r.HandleFunc("/api/value/{sym}", i.valueDetails)
	r.HandleFunc("/api/resource", i.listResources)
	r.HandleFunc("/api/profile", i.collectProfile)
	r.HandleFunc("/", i.index)
	http.Handle("/", r)

	actualPort := ":0"
	if i.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(i.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Inspecting analysis with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	return url
}

func (i *Inspector) index(w http.ResponseWriter, _ *http.Request) {
	endpoints := []string{
		"/api/tables",
		"/api/run",
		"/api/banking",
		"/api/ports",
		"/api/dispatch",
		"/api/value/{sym}",
		"/api/resource",
		"/api/profile",
	}

	bytes, err := json.Marshal(endpoints)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (i *Inspector) listTables(w http.ResponseWriter, _ *http.Request) {
	tables := i.reader.ListTables()
	sort.Strings(tables)

	bytes, err := json.Marshal(tables)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type tableRsp struct {
	Total int   `json:"total"`
	Rows  []any `json:"rows"`
}

func (i *Inspector) listBanking(w http.ResponseWriter, r *http.Request) {
	i.queryTable(w, r, reporting.BankingTable, true)
}

func (i *Inspector) listPorts(w http.ResponseWriter, r *http.Request) {
	i.queryTable(w, r, reporting.PortTable, true)
}

func (i *Inspector) listDispatch(w http.ResponseWriter, r *http.Request) {
	i.queryTable(w, r, reporting.DispatchTable, true)
}

func (i *Inspector) listRunInfo(w http.ResponseWriter, r *http.Request) {
	i.queryTable(w, r, reporting.RunInfoTable, false)
}

func (i *Inspector) queryTable(
	w http.ResponseWriter,
	r *http.Request,
	table string,
	filterByMem bool,
) {
	params, err := tableParseParams(r, filterByMem)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	rows, total, err := i.reader.Query(r.Context(), table, params)
	dieOnErr(err)

	if rows == nil {
		rows = []any{}
	}

	bytes, err := json.Marshal(tableRsp{Total: total, Rows: rows})
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func tableParseParams(
	r *http.Request,
	filterByMem bool,
) (reporting.QueryParams, error) {
	params := reporting.QueryParams{}

	if filterByMem {
		if mem := r.URL.Query().Get("mem"); mem != "" {
			params.Where = "Mem = ?"
			params.Args = []any{mem}
		}
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return params, err
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}

	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		return params, err
	}

	params.Limit = limit
	params.Offset = offset

	return params, nil
}

var valueKinds = []ir.Kind{
	ir.KindDuplicates,
	ir.KindPadding,
	ir.KindDispatch,
	ir.KindPorts,
	ir.KindReaders,
	ir.KindWriters,
	ir.KindAccumulator,
	ir.KindWriteBuffer,
	ir.KindNonBuffer,
	ir.KindResourceHint,
}

func (i *Inspector) valueDetails(w http.ResponseWriter, r *http.Request) {
	if i.store == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("No metadata store registered"))
		dieOnErr(err)

		return
	}

	symStr := mux.Vars(r)["sym"]

	n, err := strconv.Atoi(symStr)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	details := i.collectMetadata(ir.Value(n))
	if len(details) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Value not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(details)
	serializer.SetMaxDepth(3)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (i *Inspector) collectMetadata(sym ir.Value) map[string]any {
	details := make(map[string]any)

	for _, kind := range valueKinds {
		if data, ok := i.store.Get(sym, kind); ok {
			details[kind.String()] = data
		}
	}

	return details
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (i *Inspector) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (i *Inspector) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
