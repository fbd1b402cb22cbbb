package utils

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with an ellipsis when over the limit", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is…"))
	})

	It("counts runes rather than bytes", func() {
		s := strings.Repeat("é", 201)
		out := Truncate(s, 200)
		Expect([]rune(out)).To(HaveLen(198))
		Expect(out).To(HaveSuffix("…"))
	})
})

var _ = Describe("FirstLine", func() {
	It("returns the text before the first newline", func() {
		Expect(FirstLine("one\r\ntwo")).To(Equal("one"))
		Expect(FirstLine("single")).To(Equal("single"))
		Expect(FirstLine("")).To(BeEmpty())
	})
})
