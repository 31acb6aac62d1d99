package fuzz

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReportFileName is written into each sanitizer out directory so the archive
// carries the smoke result next to the binaries.
const ReportFileName = "smoke-report.xml"

type xmlTestCase struct {
	Name    string      `xml:"name,attr"`
	Time    float64     `xml:"time,attr"`
	Failure *xmlFailure `xml:"failure,omitempty"`
}

type xmlFailure struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

type xmlTestSuite struct {
	XMLName   xml.Name      `xml:"testsuite"`
	Name      string        `xml:"name,attr"`
	Tests     int           `xml:"tests,attr"`
	Failures  int           `xml:"failures,attr"`
	Timestamp string        `xml:"timestamp,attr"`
	Cases     []xmlTestCase `xml:"testcase"`
}

// WriteReport renders the smoke report as JUnit-style XML, one testsuite per
// sanitizer, one testcase per fuzz target.
func WriteReport(w io.Writer, report *SanitizerReport) error {
	suite := xmlTestSuite{
		Name:      fmt.Sprintf("%s-%s", report.Project, report.Sanitizer),
		Tests:     len(report.Results),
		Failures:  report.FailureCount(),
		Timestamp: report.StartedAt.Format("2006-01-02T15:04:05"),
	}
	for _, r := range report.Results {
		c := xmlTestCase{
			Name: r.Name,
			Time: r.Duration.Seconds(),
		}
		if !r.Passed {
			c.Failure = &xmlFailure{
				Message: r.Detail,
				Content: r.Summary,
			}
		}
		suite.Cases = append(suite.Cases, c)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suite); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteReportFile writes the XML report into dir and returns the file path.
func WriteReportFile(dir string, report *SanitizerReport) (string, error) {
	p := filepath.Join(dir, ReportFileName)
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: path=%s, err=%w", p, err)
	}
	defer f.Close()
	if err := WriteReport(f, report); err != nil {
		return "", err
	}
	return p, nil
}
