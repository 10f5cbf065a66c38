package descriptor

import (
	"bytes"
	"encoding/xml"
	"io"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// Provenance is the external provenance recorded in a descriptor: the raw XML of
// every PREMIS event and agent found inside METS digiprovMD sections
type Provenance struct {
	Events []string
	Agents []string
}

// ExtractProvenance reads the external events and agents from a descriptor
func ExtractProvenance(r io.Reader) (*Provenance, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read descriptor")
	}

	p := &Provenance{}
	dec := xml.NewDecoder(bytes.NewReader(data))
	inDigiprov := 0

	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed descriptor")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isMETS(t.Name, "digiprovMD") {
				inDigiprov++
				continue
			}

			if inDigiprov == 0 || !isPremis(t.Name.Space) {
				continue
			}

			var into *[]string
			switch t.Name.Local {
			case "event":
				into = &p.Events
			case "agent":
				into = &p.Agents
			default:
				continue
			}

			if err := dec.Skip(); err != nil {
				return nil, errors.Wrapf(err, "malformed premis %s", t.Name.Local)
			}
			*into = append(*into, string(data[start:dec.InputOffset()]))

		case xml.EndElement:
			if isMETS(t.Name, "digiprovMD") {
				inDigiprov--
			}
		}
	}

	return p, nil
}

// PREMIS namespaces vary by schema version
func isPremis(space string) bool {
	return strings.HasPrefix(space, "info:lc/xmlns/premis") ||
		strings.HasPrefix(space, "http://www.loc.gov/premis")
}
