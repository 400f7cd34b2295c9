package main

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/link-rotator/internal/parser"
)

var _ = DescribeTable("render",
	func(format string, dialect parser.Dialect) {
		body, err := render(format, 3)
		Expect(err).NotTo(HaveOccurred())

		list, err := parser.Parse(dialect, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(Equal(parser.CandidateList{
			"https://shop.example.test/item/1",
			"https://shop.example.test/item/2",
			"https://shop.example.test/item/3",
		}))
	},
	Entry("plain", "plain", parser.DialectPlain),
	Entry("csv", "csv", parser.DialectCSV),
	Entry("markdown", "markdown", parser.DialectMarkdown),
)

var _ = Describe("render errors", func() {
	It("should reject unknown formats and empty lists", func() {
		_, err := render("xml", 3)
		Expect(err).To(HaveOccurred())
		_, err = render("plain", 0)
		Expect(err).To(HaveOccurred())
	})
})
