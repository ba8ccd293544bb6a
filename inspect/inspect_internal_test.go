package inspect

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"

	"github.com/gorilla/mux"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shuttlelab/shuttle/ir"
	"github.com/shuttlelab/shuttle/mem/banking"
	"github.com/shuttlelab/shuttle/reporting"
)

var _ = Describe("Inspector", func() {
	var (
		inspector *Inspector
		router    *mux.Router
	)

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		return w
	}

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "report")

		recorder := reporting.New(path)
		recorder.CreateTable(reporting.BankingTable, reporting.BankingEntry{})
		recorder.CreateTable(reporting.PortTable, reporting.PortEntry{})
		recorder.CreateTable(
			reporting.DispatchTable, reporting.DispatchEntry{})
		recorder.CreateTable(reporting.RunInfoTable, reporting.RunEntry{})

		recorder.InsertData(reporting.BankingTable, reporting.BankingEntry{
			Mem: "v1", Dup: 0, Banks: 4, Depth: 2, Cost: 6.5,
		})
		recorder.InsertData(reporting.BankingTable, reporting.BankingEntry{
			Mem: "v2", Dup: 0, Banks: 2, Depth: 1, Cost: 2.0,
		})
		recorder.Flush()

		reader := reporting.NewReader(path + ".sqlite3")
		DeferCleanup(func() error { return reader.Close() })

		store := ir.NewStore()
		store.Put(1, ir.KindDuplicates, []banking.Memory{banking.Unit(2)})

		inspector = NewInspector()
		inspector.RegisterReader(reader)
		inspector.RegisterStore(store)

		router = mux.NewRouter()
		router.HandleFunc("/api/tables", inspector.listTables)
		router.HandleFunc("/api/banking", inspector.listBanking)
		router.HandleFunc("/api/run", inspector.listRunInfo)
		router.HandleFunc("/api/value/{sym}", inspector.valueDetails)
	})

	It("should list mapped tables", func() {
		w := get("/api/tables")

		Expect(w.Code).To(Equal(200))

		var tables []string
		Expect(json.Unmarshal(w.Body.Bytes(), &tables)).To(Succeed())
		Expect(tables).To(Equal([]string{
			"banking_decisions",
			"dispatch_resolutions",
			"port_assignments",
			"run_info",
		}))
	})

	It("should serve banking decisions", func() {
		w := get("/api/banking")

		Expect(w.Code).To(Equal(200))

		var rsp struct {
			Total int                      `json:"total"`
			Rows  []reporting.BankingEntry `json:"rows"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Total).To(Equal(2))
		Expect(rsp.Rows).To(HaveLen(2))
	})

	It("should filter banking decisions by memory", func() {
		w := get("/api/banking?mem=v1")

		Expect(w.Code).To(Equal(200))

		var rsp struct {
			Total int                      `json:"total"`
			Rows  []reporting.BankingEntry `json:"rows"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Total).To(Equal(1))
		Expect(rsp.Rows).To(HaveLen(1))
		Expect(rsp.Rows[0].Mem).To(Equal("v1"))
		Expect(rsp.Rows[0].Banks).To(Equal(4))
	})

	It("should page banking decisions", func() {
		w := get("/api/banking?limit=1&offset=1")

		Expect(w.Code).To(Equal(200))

		var rsp struct {
			Total int                      `json:"total"`
			Rows  []reporting.BankingEntry `json:"rows"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Total).To(Equal(2))
		Expect(rsp.Rows).To(HaveLen(1))
		Expect(rsp.Rows[0].Mem).To(Equal("v2"))
	})

	It("should reject malformed limits", func() {
		w := get("/api/banking?limit=abc")

		Expect(w.Code).To(Equal(400))
	})

	It("should serve empty tables", func() {
		w := get("/api/run")

		Expect(w.Code).To(Equal(200))

		var rsp struct {
			Total int   `json:"total"`
			Rows  []any `json:"rows"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Total).To(Equal(0))
		Expect(rsp.Rows).To(BeEmpty())
	})

	It("should serve value metadata", func() {
		w := get("/api/value/1")

		Expect(w.Code).To(Equal(200))
		Expect(w.Body.Len()).NotTo(BeZero())
	})

	It("should 404 on values without metadata", func() {
		w := get("/api/value/9")

		Expect(w.Code).To(Equal(404))
	})

	It("should reject malformed value handles", func() {
		w := get("/api/value/abc")

		Expect(w.Code).To(Equal(400))
	})

	It("should 404 on the value endpoint without a store", func() {
		bare := NewInspector()

		bareRouter := mux.NewRouter()
		bareRouter.HandleFunc("/api/value/{sym}", bare.valueDetails)

		req := httptest.NewRequest("GET", "/api/value/1", nil)
		w := httptest.NewRecorder()
		bareRouter.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(404))
	})
})
