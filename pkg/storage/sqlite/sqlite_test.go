package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/storage"
	"github.com/papercomputeco/tracelens/pkg/storage/sqlite"
	"github.com/papercomputeco/tracelens/pkg/storage/storagetest"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(ctx context.Context) storage.Driver {
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("persists snapshots in a database file", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "tracelens.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Put(ctx, testutils.SupportSnapshot())).To(Succeed())
		Expect(d.Close()).To(Succeed())

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())

		reopened, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		got, err := reopened.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Trace.Observations).To(HaveLen(6))
	})
})
