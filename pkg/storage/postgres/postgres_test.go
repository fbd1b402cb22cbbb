package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/storage"
	"github.com/papercomputeco/tracelens/pkg/storage/postgres"
	"github.com/papercomputeco/tracelens/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("TRACELENS_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("TRACELENS_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(ctx context.Context) storage.Driver {
		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all snapshots before each test for isolation.
		_, err = d.DB().ExecContext(ctx, "DELETE FROM snapshots")
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})
