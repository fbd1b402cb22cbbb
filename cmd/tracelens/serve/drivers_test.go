package servecmder

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/config"
	"github.com/papercomputeco/tracelens/pkg/eventstream/kafka"
	"github.com/papercomputeco/tracelens/pkg/eventstream/nop"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/storage/inmemory"
	"github.com/papercomputeco/tracelens/pkg/storage/sqlite"
)

var _ = Describe("newStorageDriver", func() {
	ctx := context.Background()

	It("defaults to in-memory storage", func() {
		driver, err := newStorageDriver(ctx, config.StorageConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens a SQLite database at the configured path", func() {
		path := filepath.Join(GinkgoT().TempDir(), "tracelens.db")

		driver, err := newStorageDriver(ctx, config.StorageConfig{
			Driver:     config.StorageSQLite,
			SQLitePath: path,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(path).To(BeAnExistingFile())
	})

	It("requires a DSN for postgres", func() {
		_, err := newStorageDriver(ctx, config.StorageConfig{Driver: config.StoragePostgres}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("--postgres-dsn")))
	})

	It("rejects unknown drivers", func() {
		_, err := newStorageDriver(ctx, config.StorageConfig{Driver: "mysql"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`unknown storage driver "mysql"`)))
	})
})

var _ = Describe("newPublisher", func() {
	It("defaults to the no-op publisher", func() {
		publisher, err := newPublisher(config.EventStreamConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a Kafka publisher", func() {
		publisher, err := newPublisher(config.EventStreamConfig{
			Provider: config.EventStreamKafka,
			Brokers:  []string{"localhost:9092"},
			Topic:    "tracelens.analyses",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(publisher.Close)
		Expect(publisher).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("surfaces Kafka misconfiguration", func() {
		_, err := newPublisher(config.EventStreamConfig{
			Provider: config.EventStreamKafka,
			Topic:    "tracelens.analyses",
		}, logger.Nop())
		Expect(err).To(MatchError(kafka.ErrNoBrokers))
	})

	It("rejects unknown providers", func() {
		_, err := newPublisher(config.EventStreamConfig{Provider: "nats"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewServeCmd", func() {
	It("registers the shared flags", func() {
		cmd := NewServeCmd()
		for _, key := range serveFlags {
			Expect(cmd.Flags().Lookup(config.Flags[key].Name)).NotTo(BeNil(), key)
		}
		Expect(cmd.Flags().Lookup("log-json")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("no-mcp")).NotTo(BeNil())
	})
})
