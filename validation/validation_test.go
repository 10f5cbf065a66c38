package validation_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/config"
	"github.com/birkland/sipvalidate/internal/executor"
	"github.com/birkland/sipvalidate/scan"
	"github.com/birkland/sipvalidate/validation"
	"github.com/birkland/sipvalidate/xmlvalid"
	"github.com/go-test/deep"
	"github.com/pkg/errors"
)

const (
	hello     = "hello\n"
	helloMD5  = "b1946ac92492d2347c6235b4d2611184"
	helloSHA1 = "f572d396fae9206628714fb2ce00f72e94f2258f"
	wrongMD5  = "00000000000000000000000000000000"
)

var (
	success = sipvalidate.Success
	failure = sipvalidate.Failure
)

type declared struct {
	href      string
	checksum  string
	algorithm string
}

// mets renders a descriptor declaring the given files
func mets(files ...declared) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<mets xmlns="http://www.loc.gov/METS/"
      xmlns:xlink="http://www.w3.org/1999/xlink"
      xmlns:daitss="http://www.fcla.edu/dls/md/daitss/">
  <metsHdr>
    <agent ROLE="OTHER" OTHERROLE="SUBMITTER"><name>Jane Archivist</name></agent>
  </metsHdr>
  <amdSec>
    <techMD ID="T1"><mdWrap MDTYPE="OTHER"><xmlData>
      <daitss:daitss><daitss:AGREEMENT_INFO ACCOUNT="FDA" PROJECT="PRJ"/></daitss:daitss>
    </xmlData></mdWrap></techMD>
  </amdSec>
  <fileSec><fileGrp>
`)
	for i, f := range files {
		fmt.Fprintf(&b, `    <file ID="F%d"`, i)
		if f.checksum != "" {
			fmt.Fprintf(&b, ` CHECKSUM="%s"`, f.checksum)
		}
		if f.algorithm != "" {
			fmt.Fprintf(&b, ` CHECKSUMTYPE="%s"`, f.algorithm)
		}
		fmt.Fprintf(&b, `><FLocat LOCTYPE="URL" xlink:href="%s"/></file>`+"\n", f.href)
	}
	b.WriteString("  </fileGrp></fileSec>\n</mets>\n")
	return b.String()
}

// mkpackage creates a package directory named pkg in a fresh temporary directory.
// Paths ending in a solidus are created as empty directories; everything else is
// a file with the given content.
func mkpackage(t *testing.T, files map[string]string) string {
	tempDir, err := ioutil.TempDir("", "validation_test")
	if err != nil {
		t.Fatal("Could not create testing temp dir")
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	root := filepath.Join(tempDir, "pkg")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatal(err)
	}

	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(full, 0755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

var cleanScanner = scan.Func(func(ctx context.Context, file string) (*scan.Result, error) {
	return &scan.Result{Verdict: scan.Clean, Stdout: "OK"}, nil
})

func newValidator(opts ...validation.Option) *validation.Validator {
	cfg := config.DefaultConfig()
	cfg.Workers = 4
	return validation.New(cfg, append([]validation.Option{
		validation.WithScanner(cleanScanner),
		validation.WithDescriptorValidator(xmlvalid.WellFormed{}),
	}, opts...)...)
}

func allSyntax(o sipvalidate.Outcome) map[string]sipvalidate.Outcome {
	m := make(map[string]sipvalidate.Outcome)
	for _, name := range sipvalidate.SyntaxChecks {
		m[name] = o
	}
	return m
}

func cleanCheck() *sipvalidate.VirusCheck {
	return &sipvalidate.VirusCheck{
		Outcome: sipvalidate.Success,
		Output:  sipvalidate.ScannerOutput{Stdout: "OK"},
	}
}

func TestValidateSuccess(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(
			declared{href: "a.txt", checksum: helloMD5, algorithm: "MD5"},
			declared{href: "sub/b.txt", checksum: helloSHA1},
		),
		"a.txt":     hello,
		"sub/b.txt": hello,
	})

	expected := &sipvalidate.Result{
		Path:                 root,
		Outcome:              sipvalidate.Success,
		Syntax:               allSyntax(sipvalidate.Success),
		DescriptorValidation: &sipvalidate.DescriptorValidation{Valid: sipvalidate.Success},
		AccountProject: &sipvalidate.AccountProject{
			Valid:     sipvalidate.NotImplemented,
			Account:   "FDA",
			Project:   "PRJ",
			Submitter: "Jane Archivist",
		},
		UndescribedFiles: []string{},
		VirusCheck: map[string]*sipvalidate.VirusCheck{
			"a.txt":     cleanCheck(),
			"sub/b.txt": cleanCheck(),
		},
		ChecksumCheck: map[string]*sipvalidate.ChecksumCheck{
			"a.txt": {
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &success,
				Algorithm:     "MD5",
				Described:     strings.ToUpper(helloMD5),
				Computed:      strings.ToUpper(helloMD5),
			},
			"sub/b.txt": {
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &success,
				Algorithm:     "SHA-1",
				Described:     strings.ToUpper(helloSHA1),
				Computed:      strings.ToUpper(helloSHA1),
			},
		},
	}

	result := newValidator().Validate(context.Background(), root)
	if diff := deep.Equal(expected, result); diff != nil {
		t.Error(diff)
	}
}

func TestValidateFatalSyntax(t *testing.T) {
	s, f := sipvalidate.Success, sipvalidate.Failure

	cases := []struct {
		name     string
		files    map[string]string
		path     func(root string) string
		expected map[string]sipvalidate.Outcome
	}{
		{
			name:     "doesNotExist",
			path:     func(root string) string { return filepath.Join(root, "nope") },
			expected: map[string]sipvalidate.Outcome{sipvalidate.CheckPackageIsDirectory: f},
		},
		{
			name:     "notADirectory",
			files:    map[string]string{"a.txt": hello},
			path:     func(root string) string { return filepath.Join(root, "a.txt") },
			expected: map[string]sipvalidate.Outcome{sipvalidate.CheckPackageIsDirectory: f},
		},
		{
			name:  "noDescriptor",
			files: map[string]string{"a.txt": hello, "other.xml": mets()},
			expected: map[string]sipvalidate.Outcome{
				sipvalidate.CheckPackageIsDirectory: s,
				sipvalidate.CheckDescriptorFound:    f,
			},
		},
		{
			name:  "nestedDescriptorIsNotFound",
			files: map[string]string{"a.txt": hello, "sub/pkg.xml": mets()},
			expected: map[string]sipvalidate.Outcome{
				sipvalidate.CheckPackageIsDirectory: s,
				sipvalidate.CheckDescriptorFound:    f,
			},
		},
		{
			name:  "descriptorIsADirectory",
			files: map[string]string{"a.txt": hello, "pkg.xml/": ""},
			expected: map[string]sipvalidate.Outcome{
				sipvalidate.CheckPackageIsDirectory: s,
				sipvalidate.CheckDescriptorFound:    s,
				sipvalidate.CheckDescriptorIsFile:   f,
			},
		},
		{
			name:  "noContent",
			files: map[string]string{"pkg.xml": mets(), "empty/": ""},
			expected: map[string]sipvalidate.Outcome{
				sipvalidate.CheckPackageIsDirectory: s,
				sipvalidate.CheckDescriptorFound:    s,
				sipvalidate.CheckDescriptorIsFile:   s,
				sipvalidate.CheckContentFileFound:   f,
			},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			path := mkpackage(t, c.files)
			if c.path != nil {
				path = c.path(path)
			}

			expected := &sipvalidate.Result{
				Path:    path,
				Outcome: sipvalidate.Failure,
				Syntax:  c.expected,
			}

			result := newValidator().Validate(context.Background(), path)
			if diff := deep.Equal(expected, result); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestValidateBothDescriptorCasings(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}),
		"pkg.XML": "<not-the-descriptor/>",
		"a.txt":   hello,
	})

	result := newValidator().Validate(context.Background(), root)

	if diff := deep.Equal([]string{"pkg.XML"}, result.UndescribedFiles); diff != nil {
		t.Error(diff)
	}
	if result.Outcome != sipvalidate.Success {
		t.Errorf("undescribed files should not fail a package, got %s", result.Outcome)
	}
}

func TestValidateUpperCaseDescriptor(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.XML": mets(declared{href: "a.txt", checksum: helloMD5}),
		"a.txt":   hello,
	})

	result := newValidator().Validate(context.Background(), root)
	if !result.Passed() {
		t.Errorf("expected success with an upper case descriptor extension: %+v", result)
	}
	if len(result.UndescribedFiles) != 0 {
		t.Errorf("descriptor should never be undescribed: %v", result.UndescribedFiles)
	}
}

func TestValidateFilesDirectory(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"files/pkg.xml":   mets(declared{href: "a.txt", checksum: helloMD5}),
		"files/a.txt":     hello,
		"files/.git/HEAD": "ref: refs/heads/master",
		"README":          "outside the content root",
	})

	result := newValidator().Validate(context.Background(), root)

	if !result.Passed() {
		t.Errorf("expected success: %+v", result)
	}
	if diff := deep.Equal([]string{}, result.UndescribedFiles); diff != nil {
		t.Error(diff)
	}
}

func TestValidateUndescribed(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml":       mets(declared{href: "a.txt"}),
		"a.txt":         hello,
		"z.txt":         hello,
		"sub/extra.txt": hello,
		"b.txt":         hello,
		".svn/entries":  "",
	})

	result := newValidator().Validate(context.Background(), root)

	expected := []string{"b.txt", "sub/extra.txt", "z.txt"}
	if diff := deep.Equal(expected, result.UndescribedFiles); diff != nil {
		t.Error(diff)
	}
	if _, scanned := result.VirusCheck["z.txt"]; scanned {
		t.Errorf("only described files should be scanned")
	}
	if !result.Passed() {
		t.Errorf("undescribed files should not fail a package")
	}
}

func TestValidateDanglingSymlink(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt", checksum: helloMD5}),
		"a.txt":   hello,
	})
	if err := os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	result := newValidator().Validate(context.Background(), root)

	if diff := deep.Equal(allSyntax(sipvalidate.Success), result.Syntax); diff != nil {
		t.Error(diff)
	}
	if diff := deep.Equal([]string{"dangling"}, result.UndescribedFiles); diff != nil {
		t.Error(diff)
	}
	if result.Outcome != sipvalidate.Success {
		t.Errorf("expected success, got %s (%s)", result.Outcome, result.Error)
	}
}

func TestValidateDescribedDanglingSymlink(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}, declared{href: "dangling", checksum: helloMD5}),
		"a.txt":   hello,
	})
	if err := os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	result := newValidator().Validate(context.Background(), root)

	expected := &sipvalidate.ChecksumCheck{FileExists: sipvalidate.Failure}
	if diff := deep.Equal(expected, result.ChecksumCheck["dangling"]); diff != nil {
		t.Error(diff)
	}

	expectedScan := &sipvalidate.VirusCheck{
		Outcome: sipvalidate.Indeterminate,
		Error:   "file is not present in the package",
	}
	if diff := deep.Equal(expectedScan, result.VirusCheck["dangling"]); diff != nil {
		t.Error(diff)
	}
	if result.Outcome != sipvalidate.Failure {
		t.Errorf("expected failure, got %s", result.Outcome)
	}
}

func TestValidateUnlistablePackage(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	root := mkpackage(t, map[string]string{
		"pkg.xml":      mets(declared{href: "a.txt"}),
		"a.txt":        hello,
		"locked/b.txt": hello,
	})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	result := newValidator().Validate(context.Background(), root)

	expected := map[string]sipvalidate.Outcome{
		sipvalidate.CheckPackageIsDirectory: sipvalidate.Success,
	}
	if diff := deep.Equal(expected, result.Syntax); diff != nil {
		t.Error(diff)
	}
	if result.Outcome != sipvalidate.Failure || result.Error == "" {
		t.Errorf("expected failure with an error, got %s %q", result.Outcome, result.Error)
	}
}

func TestValidateInvalidDescriptor(t *testing.T) {
	diagnostics := []sipvalidate.Diagnostic{{Level: "error", Line: 3, Column: 4, Message: "bad element"}}

	cases := []struct {
		name      string
		validator xmlvalid.Validator
		content   string
		check     func(t *testing.T, dv *sipvalidate.DescriptorValidation)
	}{
		{
			name: "rejected",
			validator: xmlvalid.Func(func(ctx context.Context, d []byte) (*xmlvalid.Report, error) {
				return &xmlvalid.Report{Diagnostics: diagnostics}, nil
			}),
			content: mets(declared{href: "a.txt"}),
			check: func(t *testing.T, dv *sipvalidate.DescriptorValidation) {
				expected := &sipvalidate.DescriptorValidation{Valid: sipvalidate.Failure, Errors: diagnostics}
				if diff := deep.Equal(expected, dv); diff != nil {
					t.Error(diff)
				}
			},
		},
		{
			name:      "malformed",
			validator: xmlvalid.WellFormed{},
			content:   "<mets><file></mets>",
		},
		{
			name: "validatorFailed",
			validator: xmlvalid.Func(func(ctx context.Context, d []byte) (*xmlvalid.Report, error) {
				return nil, errors.New("validator crashed")
			}),
			content: mets(declared{href: "a.txt"}),
		},
		{
			name: "unparseable",
			validator: xmlvalid.Func(func(ctx context.Context, d []byte) (*xmlvalid.Report, error) {
				return &xmlvalid.Report{Valid: true}, nil
			}),
			content: "<mets",
		},
		{
			name:      "duplicateEntries",
			validator: xmlvalid.WellFormed{},
			content:   mets(declared{href: "a.txt"}, declared{href: "./a.txt"}),
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			root := mkpackage(t, map[string]string{
				"pkg.xml": c.content,
				"a.txt":   hello,
			})

			result := newValidator(validation.WithDescriptorValidator(c.validator)).
				Validate(context.Background(), root)

			expected := &sipvalidate.Result{
				Path:                 root,
				Outcome:              sipvalidate.Failure,
				Syntax:               allSyntax(sipvalidate.Success),
				DescriptorValidation: result.DescriptorValidation,
			}
			if diff := deep.Equal(expected, result); diff != nil {
				t.Error(diff)
			}

			dv := result.DescriptorValidation
			if dv == nil || dv.Valid != sipvalidate.Failure || len(dv.Errors) == 0 {
				t.Fatalf("expected a failed descriptor validation with diagnostics, got %+v", dv)
			}
			if c.check != nil {
				c.check(t, dv)
			}
		})
	}
}

func TestValidateDescriptorWarnings(t *testing.T) {
	warnings := []sipvalidate.Diagnostic{{Level: "warning", Line: 1, Column: 1, Message: "deprecated"}}

	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}),
		"a.txt":   hello,
	})

	result := newValidator(validation.WithDescriptorValidator(
		xmlvalid.Func(func(ctx context.Context, d []byte) (*xmlvalid.Report, error) {
			return &xmlvalid.Report{Valid: true, Diagnostics: warnings}, nil
		}))).Validate(context.Background(), root)

	expected := &sipvalidate.DescriptorValidation{Valid: sipvalidate.Success, Errors: warnings}
	if diff := deep.Equal(expected, result.DescriptorValidation); diff != nil {
		t.Error(diff)
	}
	if !result.Passed() {
		t.Errorf("warnings should not fail a package")
	}
}

func TestValidateChecksums(t *testing.T) {
	cases := []struct {
		name     string
		entry    declared
		create   bool
		outcome  sipvalidate.Outcome
		expected *sipvalidate.ChecksumCheck
	}{
		{
			name:    "missingFile",
			entry:   declared{href: "f", checksum: helloMD5},
			outcome: sipvalidate.Failure,
			expected: &sipvalidate.ChecksumCheck{
				FileExists: sipvalidate.Failure,
			},
		},
		{
			name:    "mismatch",
			entry:   declared{href: "f", checksum: wrongMD5, algorithm: "MD5"},
			create:  true,
			outcome: sipvalidate.Failure,
			expected: &sipvalidate.ChecksumCheck{
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &failure,
				Algorithm:     "MD5",
				Described:     wrongMD5,
				Computed:      strings.ToUpper(helloMD5),
			},
		},
		{
			name:    "noChecksum",
			entry:   declared{href: "f"},
			create:  true,
			outcome: sipvalidate.Success,
			expected: &sipvalidate.ChecksumCheck{
				FileExists: sipvalidate.Success,
			},
		},
		{
			name:    "caseInsensitive",
			entry:   declared{href: "f", checksum: strings.ToUpper(helloSHA1), algorithm: "SHA-1"},
			create:  true,
			outcome: sipvalidate.Success,
			expected: &sipvalidate.ChecksumCheck{
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &success,
				Algorithm:     "SHA-1",
				Described:     strings.ToUpper(helloSHA1),
				Computed:      strings.ToUpper(helloSHA1),
			},
		},
		{
			name:    "unsupportedAlgorithm",
			entry:   declared{href: "f", checksum: "abcd", algorithm: "SHA-256"},
			create:  true,
			outcome: sipvalidate.Failure,
			expected: &sipvalidate.ChecksumCheck{
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &failure,
				Algorithm:     "SHA-256",
				Described:     "ABCD",
				Error:         "unsupported checksum type: SHA-256",
			},
		},
		{
			name:    "uninferableAlgorithm",
			entry:   declared{href: "f", checksum: "abcd"},
			create:  true,
			outcome: sipvalidate.Failure,
			expected: &sipvalidate.ChecksumCheck{
				FileExists:    sipvalidate.Success,
				ChecksumMatch: &failure,
				Described:     "ABCD",
				Error:         "missing checksum type",
			},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			files := map[string]string{
				"pkg.xml": mets(c.entry, declared{href: "a.txt", checksum: helloMD5}),
				"a.txt":   hello,
			}
			if c.create {
				files["f"] = hello
			}
			root := mkpackage(t, files)

			result := newValidator().Validate(context.Background(), root)

			if diff := deep.Equal(c.expected, result.ChecksumCheck["f"]); diff != nil {
				t.Error(diff)
			}
			if result.Outcome != c.outcome {
				t.Errorf("expected outcome %s, got %s", c.outcome, result.Outcome)
			}

			other := result.ChecksumCheck["a.txt"]
			if other == nil || other.ChecksumMatch == nil || *other.ChecksumMatch != sipvalidate.Success {
				t.Errorf("other files should be unaffected, got %+v", other)
			}
		})
	}
}

func TestValidateVirusCheck(t *testing.T) {
	verdicts := scan.Func(func(ctx context.Context, file string) (*scan.Result, error) {
		switch filepath.Base(file) {
		case "eicar.com":
			return &scan.Result{Verdict: scan.Infected, ExitStatus: 1, Stdout: "FOUND", Stderr: "warn"}, nil
		case "odd.bin":
			return &scan.Result{Verdict: scan.Indeterminate, ExitStatus: 2}, nil
		case "slow.bin":
			return &scan.Result{Verdict: scan.Indeterminate, ExitStatus: -1, TimedOut: true}, nil
		case "broken.bin":
			return nil, errors.New("scanner not executable")
		}
		return &scan.Result{Verdict: scan.Clean, Stdout: "OK"}, nil
	})

	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(
			declared{href: "a.txt"},
			declared{href: "eicar.com"},
			declared{href: "odd.bin"},
			declared{href: "slow.bin"},
			declared{href: "broken.bin"},
			declared{href: "missing.bin"},
		),
		"a.txt":      hello,
		"eicar.com":  hello,
		"odd.bin":    hello,
		"slow.bin":   hello,
		"broken.bin": hello,
	})

	expected := map[string]*sipvalidate.VirusCheck{
		"a.txt": cleanCheck(),
		"eicar.com": {
			Outcome: sipvalidate.Failure,
			Output:  sipvalidate.ScannerOutput{Stdout: "FOUND", Stderr: "warn"},
		},
		"odd.bin": {
			Outcome: sipvalidate.Indeterminate,
		},
		"slow.bin": {
			Outcome: sipvalidate.Indeterminate,
			Error:   "virus scan timed out",
		},
		"broken.bin": {
			Outcome: sipvalidate.Indeterminate,
			Error:   "scanner not executable",
		},
		"missing.bin": {
			Outcome: sipvalidate.Indeterminate,
			Error:   "file is not present in the package",
		},
	}

	result := newValidator(validation.WithScanner(verdicts)).Validate(context.Background(), root)

	if diff := deep.Equal(expected, result.VirusCheck); diff != nil {
		t.Error(diff)
	}
	if result.Outcome != sipvalidate.Failure {
		t.Errorf("expected failure, got %s", result.Outcome)
	}
}

func TestValidateIndeterminateScanFails(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt", checksum: helloMD5}),
		"a.txt":   hello,
	})

	result := newValidator(validation.WithScanner(
		scan.Func(func(ctx context.Context, file string) (*scan.Result, error) {
			return &scan.Result{Verdict: scan.Indeterminate, ExitStatus: 40}, nil
		}))).Validate(context.Background(), root)

	if result.Outcome != sipvalidate.Failure {
		t.Errorf("an indeterminate scan should fail the package")
	}
}

type namedScanner struct {
	scan.Func
}

func (namedScanner) Executable() string {
	return "fakescan --quiet"
}

func TestValidateRecordsScannerExecutable(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}),
		"a.txt":   hello,
	})

	result := newValidator(validation.WithScanner(namedScanner{cleanScanner})).
		Validate(context.Background(), root)

	if got := result.VirusCheck["a.txt"].Executable; got != "fakescan --quiet" {
		t.Errorf("expected scanner executable to be recorded, got %q", got)
	}
}

func TestValidateConfiguredScanner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}

	cfg := config.DefaultConfig()
	cfg.VirusScanner.Command = []string{sh, "-c", `case "$1" in *eicar*) echo "$1: FOUND"; exit 1;; esac`, "scanner"}

	root := mkpackage(t, map[string]string{
		"pkg.xml":   mets(declared{href: "a.txt"}, declared{href: "eicar.com"}),
		"a.txt":     hello,
		"eicar.com": hello,
	})

	result := validation.New(cfg).Validate(context.Background(), root)

	clean, infected := result.VirusCheck["a.txt"], result.VirusCheck["eicar.com"]
	if clean == nil || clean.Outcome != sipvalidate.Success {
		t.Errorf("expected a clean scan, got %+v", clean)
	}
	if infected == nil || infected.Outcome != sipvalidate.Failure || !strings.Contains(infected.Output.Stdout, "FOUND") {
		t.Errorf("expected an infected scan, got %+v", infected)
	}
	if clean != nil && clean.Executable != executor.Command(cfg.VirusScanner.Command).String() {
		t.Errorf("wrong executable recorded: %q", clean.Executable)
	}
}

func TestValidateAccounts(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}),
		"a.txt":   hello,
	})

	cases := []struct {
		name     string
		accounts map[string][]string
		expected sipvalidate.Outcome
	}{
		{"unchecked", nil, sipvalidate.NotImplemented},
		{"allowed", map[string][]string{"FDA": {"PRJ"}}, sipvalidate.Success},
		{"unknown", map[string][]string{"UF": {"PRJ"}}, sipvalidate.Failure},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Accounts = c.accounts

			result := validation.New(cfg,
				validation.WithScanner(cleanScanner),
				validation.WithDescriptorValidator(xmlvalid.WellFormed{}),
			).Validate(context.Background(), root)

			if result.AccountProject.Valid != c.expected {
				t.Errorf("expected account validation %s, got %s", c.expected, result.AccountProject.Valid)
			}
			if !result.Passed() {
				t.Errorf("account validation should never fail a package")
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	files := map[string]string{}
	var entries []declared
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("dir%d/file%02d.txt", i%3, i)
		files[name] = hello
		sum := helloMD5
		if i%7 == 0 {
			sum = wrongMD5
		}
		entries = append(entries, declared{href: name, checksum: sum})
	}
	entries = append(entries, declared{href: "gone.txt"})
	files["extra.txt"] = hello
	files["pkg.xml"] = mets(entries...)

	root := mkpackage(t, files)

	v := newValidator()
	first := v.Validate(context.Background(), root)
	second := v.Validate(context.Background(), root)

	if diff := deep.Equal(first, second); diff != nil {
		t.Error(diff)
	}
	if first.Outcome != sipvalidate.Failure {
		t.Errorf("expected failure, got %s", first.Outcome)
	}
	if len(first.ChecksumCheck) != 41 || len(first.VirusCheck) != 41 {
		t.Errorf("expected every described file to be checked")
	}
}

func TestValidateCancelled(t *testing.T) {
	root := mkpackage(t, map[string]string{
		"pkg.xml": mets(declared{href: "a.txt"}),
		"a.txt":   hello,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newValidator(validation.WithDescriptorValidator(
		xmlvalid.Func(func(ctx context.Context, d []byte) (*xmlvalid.Report, error) {
			return &xmlvalid.Report{Valid: true}, nil
		}))).Validate(ctx, root)

	if result.Outcome != sipvalidate.Failure {
		t.Errorf("a cancelled validation must not succeed")
	}
	if c := result.VirusCheck["a.txt"]; c == nil || c.Outcome != sipvalidate.Indeterminate {
		t.Errorf("expected an indeterminate scan after cancellation, got %+v", c)
	}
}
