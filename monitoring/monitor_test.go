package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaseebLUMS/tree-sim/timing"
)

type tick struct {
	*timing.EventBase
}

type tickHandler struct {
	handled int
}

func (h *tickHandler) Handle(_ timing.Event) error {
	h.handled++
	return nil
}

var _ = Describe("Monitor", func() {
	var (
		engine  *timing.SerialEngine
		monitor *Monitor
	)

	serve := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		monitor.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		monitor = NewMonitor(nil)
		monitor.RegisterEngine(engine)
	})

	It("should report the current virtual time", func() {
		h := &tickHandler{}
		engine.Schedule(tick{timing.NewEventBase(2*timing.Second, h)})
		Expect(engine.Run()).To(Succeed())

		rec := serve(http.MethodGet, "/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now": 2}`))
	})

	It("should hold the engine between pause and continue", func() {
		h := &tickHandler{}
		engine.Schedule(tick{timing.NewEventBase(timing.Second, h)})

		Expect(serve(http.MethodPost, "/api/pause").Code).
			To(Equal(http.StatusOK))

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(engine.Run()).To(Succeed())
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())

		Expect(serve(http.MethodPost, "/api/continue").Code).
			To(Equal(http.StatusOK))
		Eventually(done).Should(BeClosed())
		Expect(h.handled).To(Equal(1))
	})

	It("should only pause on POST", func() {
		Expect(serve(http.MethodGet, "/api/pause").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should refuse engine routes without an engine", func() {
		monitor = NewMonitor(nil)

		Expect(serve(http.MethodGet, "/api/now").Code).
			To(Equal(http.StatusServiceUnavailable))
	})

	It("should list progress bars", func() {
		bar := NewProgressBar("Generator", 4)
		bar.IncrementFinished(3)
		monitor.RegisterProgressBar(bar)

		rec := serve(http.MethodGet, "/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]).To(HaveKeyWithValue("name", "Generator"))
		Expect(bars[0]).To(HaveKeyWithValue("total", 4.0))
		Expect(bars[0]).To(HaveKeyWithValue("finished", 3.0))
	})

	It("should report resource usage", func() {
		rec := serve(http.MethodGet, "/api/resource")

		var usage ResourceUsage
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &usage)).To(Succeed())
		Expect(usage.MemorySize).To(BeNumerically(">", 0))
	})

	It("should expose the registered metrics", func() {
		registry := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treesim_test_total",
			Help: "Test counter",
		})
		registry.MustRegister(counter)
		counter.Add(7)
		monitor.RegisterGatherer(registry)

		rec := serve(http.MethodGet, "/metrics")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("treesim_test_total 7"))
	})

	It("should serve on a local port until shut down", func() {
		url, err := monitor.WithAddress("127.0.0.1:0").StartServer()
		Expect(err).NotTo(HaveOccurred())

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(rsp.Body)
		rsp.Body.Close()

		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{"now": 0}`))
		Expect(monitor.Shutdown(context.Background())).To(Succeed())
	})
})
