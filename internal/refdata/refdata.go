// Package refdata loads the reference tables the checks consult: builtin
// exception names, PIL module names, errno values, signatures of embedded
// code copies and the tag catalogue.
package refdata

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"pydiatra/internal/models"
)

//go:embed data
var embedded embed.FS

// File names inside the data directory.
const (
	ExceptionsFile = "exceptions"
	PILModulesFile = "pil-modules"
	ErrnoFile      = "errno-constants"
	CodeCopiesFile = "embedded-code-copies"
	TagsFile       = "tags.yaml"
)

// Signature identifies an embedded copy of a third-party library.
type Signature struct {
	Name    string
	Pattern string
}

// TagInfo describes one public tag kind.
type TagInfo struct {
	Severity    models.Severity `yaml:"severity"`
	Certainty   string          `yaml:"certainty"`
	Description string          `yaml:"description"`
}

// Data holds the loaded tables. It is never modified after loading and
// may be shared between goroutines.
type Data struct {
	Exceptions map[string]bool
	PILModules map[string]bool
	Errno      map[int]string
	CodeCopies []Signature
	Tags       map[string]TagInfo

	codeCopyRE *regexp.Regexp
	// codeCopyGroup[i] is the submatch index of signature i
	codeCopyGroup []int
}

var (
	defaultOnce sync.Once
	defaultData *Data
	defaultErr  error
)

// Default returns the tables shipped with the program.
func Default() (*Data, error) {
	defaultOnce.Do(func() {
		defaultData, defaultErr = Load("")
	})
	return defaultData, defaultErr
}

// Load reads the tables from dir. Files missing from dir, or all files
// when dir is empty, come from the built-in copies.
func Load(dir string) (*Data, error) {
	d := &Data{}
	var err error

	if d.Exceptions, err = loadSet(dir, ExceptionsFile); err != nil {
		return nil, err
	}
	if d.PILModules, err = loadSet(dir, PILModulesFile); err != nil {
		return nil, err
	}
	if d.Errno, err = loadErrno(dir); err != nil {
		return nil, err
	}
	if d.CodeCopies, err = loadCodeCopies(dir); err != nil {
		return nil, err
	}
	if d.Tags, err = loadTags(dir); err != nil {
		return nil, err
	}

	if len(d.CodeCopies) > 0 {
		alts := make([]string, len(d.CodeCopies))
		group := 1
		for i, sig := range d.CodeCopies {
			re, err := regexp.Compile(sig.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s: signature %s: %w", CodeCopiesFile, sig.Name, err)
			}
			alts[i] = "(" + sig.Pattern + ")"
			d.codeCopyGroup = append(d.codeCopyGroup, group)
			group += 1 + re.NumSubexp()
		}
		d.codeCopyRE, err = regexp.Compile("(?s)" + strings.Join(alts, "|"))
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", CodeCopiesFile, err)
		}
	}
	return d, nil
}

func readFile(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return embedded.ReadFile("data/" + name)
}

// lines yields the non-empty, non-comment lines of a data file.
func lines(dir, name string) ([]string, error) {
	data, err := readFile(dir, name)
	if err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func loadSet(dir, name string) (map[string]bool, error) {
	ls, err := lines(dir, name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ls))
	for _, l := range ls {
		set[l] = true
	}
	return set, nil
}

func loadErrno(dir string) (map[int]string, error) {
	ls, err := lines(dir, ErrnoFile)
	if err != nil {
		return nil, err
	}
	table := make(map[int]string, len(ls))
	for _, l := range ls {
		fields := strings.Fields(l)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s: malformed line %q", ErrnoFile, l)
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrnoFile, err)
		}
		table[n] = fields[1]
	}
	return table, nil
}

func loadCodeCopies(dir string) ([]Signature, error) {
	ls, err := lines(dir, CodeCopiesFile)
	if err != nil {
		return nil, err
	}
	sigs := make([]Signature, 0, len(ls))
	for _, l := range ls {
		name, pattern, ok := strings.Cut(l, "||")
		if !ok {
			return nil, fmt.Errorf("%s: missing separator in %q", CodeCopiesFile, l)
		}
		sigs = append(sigs, Signature{Name: strings.TrimSpace(name), Pattern: strings.TrimSpace(pattern)})
	}
	return sigs, nil
}

func loadTags(dir string) (map[string]TagInfo, error) {
	data, err := readFile(dir, TagsFile)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]TagInfo)
	if err := yaml.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", TagsFile, err)
	}
	return tags, nil
}

// MatchCodeCopy returns the name of the first signature found in s.
func (d *Data) MatchCodeCopy(s string) (string, bool) {
	if d.codeCopyRE == nil {
		return "", false
	}
	m := d.codeCopyRE.FindStringSubmatchIndex(s)
	if m == nil {
		return "", false
	}
	for i, g := range d.codeCopyGroup {
		if m[2*g] >= 0 {
			return d.CodeCopies[i].Name, true
		}
	}
	return "", false
}

// TagNames returns the catalogued tag kinds in order.
func (d *Data) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for name := range d.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the catalogue entry for kind. Unknown kinds get a
// low-severity default.
func (d *Data) Info(kind string) TagInfo {
	if info, ok := d.Tags[kind]; ok {
		return info
	}
	return TagInfo{Severity: models.SeverityLow, Certainty: "possible"}
}
