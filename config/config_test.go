package config_test

import (
	"net/netip"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/HaseebLUMS/tree-sim/config"
)

var _ = Describe("Scenario", func() {
	It("should default to the reference experiment", func() {
		cfg := config.Default()

		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Link.Delay).To(Equal(30 * time.Microsecond))
		Expect(cfg.ServerAddr()).To(Equal(
			netip.MustParseAddrPort("10.1.1.2:50000")))
		Expect(cfg.ClientIP()).To(Equal(netip.MustParseAddr("10.1.1.1")))
		Expect(cfg.Client.Rate).To(Equal(10.0))
		Expect(cfg.Client.Duration).To(Equal(10.0))
		Expect(cfg.Output.Latencies).To(Equal("latencies.txt"))
	})

	It("should overlay a file on the defaults", func() {
		data := []byte(`
link:
  delay: 1ms
client:
  rate: 20
  payload_size: 64
output:
  sqlite: samples.sqlite3
`)

		cfg, err := config.Parse("test.yaml", data)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Link.Delay).To(Equal(time.Millisecond))
		Expect(cfg.Link.DataRateBps).To(Equal(uint64(1_000_000_000)))
		Expect(cfg.Client.Rate).To(Equal(20.0))
		Expect(cfg.Client.PayloadSize).To(Equal(64))
		Expect(cfg.Client.Duration).To(Equal(10.0))
		Expect(cfg.Output.SQLite).To(Equal("samples.sqlite3"))
		Expect(cfg.Output.Latencies).To(Equal("latencies.txt"))
	})

	It("should accept a bare zero as a duration", func() {
		cfg, err := config.Parse("zero.yaml", []byte(
			"link:\n  delay: 0\nserver:\n  start: 0\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Link.Delay).To(BeZero())
		Expect(cfg.Server.Start).To(BeZero())
	})

	It("should load from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
		Expect(os.WriteFile(path, []byte("stop_time: 30s\n"), 0o644)).
			To(Succeed())

		cfg, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.StopTime).To(Equal(30 * time.Second))
	})

	It("should report a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "absent.yaml"))

		Expect(err).To(MatchError(os.ErrNotExist))
	})

	DescribeTable("schema rejections",
		func(doc string) {
			_, err := config.Parse("bad.yaml", []byte(doc))

			Expect(err).To(HaveOccurred())
		},
		Entry("unknown key", "clinet:\n  rate: 1\n"),
		Entry("short payload", "client:\n  payload_size: 4\n"),
		Entry("zero rate", "client:\n  rate: 0\n"),
		Entry("negative duration", "client:\n  duration: -1\n"),
		Entry("port out of range", "server:\n  port: 70000\n"),
		Entry("malformed delay", "link:\n  delay: soon\n"),
		Entry("non-zero bare delay", "link:\n  delay: 30\n"),
	)

	DescribeTable("semantic rejections",
		func(mutate func(*config.Scenario)) {
			cfg := config.Default()
			mutate(cfg)

			Expect(cfg.Validate()).To(MatchError(config.ErrInvalid))
		},
		Entry("bad client address", func(s *config.Scenario) {
			s.Client.Address = "not-an-ip"
		}),
		Entry("shared address", func(s *config.Scenario) {
			s.Server.Address = s.Client.Address
		}),
		Entry("client stops before it starts", func(s *config.Scenario) {
			s.Client.Stop = time.Second
		}),
		Entry("server stops before it starts", func(s *config.Scenario) {
			s.Server.Stop = 0
		}),
		Entry("payload below timestamp size", func(s *config.Scenario) {
			s.Client.PayloadSize = 7
		}),
		Entry("negative rate", func(s *config.Scenario) {
			s.Client.Rate = -1
		}),
		Entry("packet count beyond 2^63", func(s *config.Scenario) {
			s.Client.Rate = 1e9
			s.Client.Duration = 1e10
		}),
		Entry("no latency file", func(s *config.Scenario) {
			s.Output.Latencies = ""
		}),
	)
})

var _ = Describe("Environment", func() {
	setenv := func(key, value string) {
		old, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())

		DeferCleanup(func() {
			if had {
				os.Setenv(key, old)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	It("should override fields from TREESIM variables", func() {
		setenv(config.EnvRate, "2.5")
		setenv(config.EnvPayloadSize, "16")
		setenv(config.EnvLinkDelay, "5us")
		setenv(config.EnvLatencyFile, "out.txt")

		cfg := config.Default()

		Expect(cfg.ApplyEnv()).To(Succeed())
		Expect(cfg.Client.Rate).To(Equal(2.5))
		Expect(cfg.Client.PayloadSize).To(Equal(16))
		Expect(cfg.Link.Delay).To(Equal(5 * time.Microsecond))
		Expect(cfg.Output.Latencies).To(Equal("out.txt"))
	})

	It("should reject unparsable overrides", func() {
		setenv(config.EnvDuration, "ten")

		Expect(config.Default().ApplyEnv()).NotTo(Succeed())
	})

	It("should load a .env file without overriding the environment", func() {
		setenv(config.EnvSQLiteFile, "kept.sqlite3")
		DeferCleanup(os.Unsetenv, config.EnvMetricsFile)

		path := filepath.Join(GinkgoT().TempDir(), ".env")
		Expect(os.WriteFile(path, []byte(
			config.EnvSQLiteFile+"=ignored.sqlite3\n"+
				config.EnvMetricsFile+"=metrics.prom\n"), 0o644)).To(Succeed())

		Expect(config.LoadDotEnv(path, filepath.Join(filepath.Dir(path), "none"))).
			To(Succeed())

		cfg := config.Default()
		Expect(cfg.ApplyEnv()).To(Succeed())
		Expect(cfg.Output.SQLite).To(Equal("kept.sqlite3"))
		Expect(cfg.Output.Metrics).To(Equal("metrics.prom"))
	})
})

var _ = Describe("Reference scenario file", func() {
	It("should match the defaults", func() {
		cfg, err := config.Load(filepath.Join("..", "scenario.yaml"))

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
	})
})
