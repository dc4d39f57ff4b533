package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Format is a negotiated response representation.
type Format int

const (
	FormatJSON   Format = iota // compact application/json
	FormatJSONLD               // linked data, application/ld+json
	FormatHAL                  // hypermedia, application/hal+json
)

const (
	mediaJSON   = "application/json"
	mediaJSONLD = "application/ld+json"
	mediaHAL    = "application/hal+json"
)

func (f Format) ContentType() string {
	switch f {
	case FormatJSONLD:
		return mediaJSONLD
	case FormatHAL:
		return mediaHAL
	default:
		return mediaJSON
	}
}

func (f Format) String() string {
	switch f {
	case FormatJSONLD:
		return "jsonld"
	case FormatHAL:
		return "jsonhal"
	default:
		return "json"
	}
}

// Negotiate picks a representation from an Accept header with fixed
// precedence: application/json, then application/ld+json, then
// application/hal+json. Anything else, including an empty or malformed
// header, falls back to compact JSON.
func Negotiate(accept string) Format {
	seen := map[string]bool{}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		seen[mt] = true
	}
	switch {
	case seen[mediaJSON]:
		return FormatJSON
	case seen[mediaJSONLD]:
		return FormatJSONLD
	case seen[mediaHAL]:
		return FormatHAL
	default:
		return FormatJSON
	}
}

// resource describes how a body is decorated for the linked formats.
type resource struct {
	Type string // JSON-LD @type, e.g. "Total"
	Self string // IRI of this representation
}

// encode marshals body in the requested format. JSON-LD adds @context, @id
// and @type; HAL adds _links.self. The compact form is body as-is.
func encode(f Format, res resource, body any) ([]byte, error) {
	if f == FormatJSON {
		return json.Marshal(body)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	set := func(k string, v any) {
		b, _ := json.Marshal(v)
		fields[k] = b
	}
	switch f {
	case FormatJSONLD:
		set("@context", "/contexts/"+res.Type)
		set("@id", res.Self)
		set("@type", res.Type)
	case FormatHAL:
		set("_links", map[string]any{"self": map[string]string{"href": res.Self}})
	}
	return json.Marshal(fields)
}

// calcETag hashes an encoded body into a weak validator.
func calcETag(body []byte) string {
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

// etagMatches applies weak comparison to an If-None-Match list: "*" matches
// anything and a W/ prefix on either side is ignored.
func etagMatches(header, etag string) bool {
	opaque := strings.TrimPrefix(etag, "W/")
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == opaque {
			return true
		}
	}
	return false
}

// render negotiates, encodes and writes body with an ETag. Safe reads answer
// 304 when the client already holds this representation.
func render(w http.ResponseWriter, r *http.Request, status int, res resource, body any) Format {
	f := Negotiate(r.Header.Get("Accept"))
	out, err := encode(f, res, body)
	if err != nil {
		log.Error().Err(err).Str("type", res.Type).Msg("failed to encode response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not encode response")
		return f
	}

	etag := calcETag(out)
	w.Header().Set("Vary", "Accept")
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && status == http.StatusOK &&
		(r.Method == http.MethodGet || r.Method == http.MethodHead) && etagMatches(inm, etag) {
		w.WriteHeader(http.StatusNotModified)
		return f
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(out); err != nil {
		log.Error().Err(err).Str("type", res.Type).Msg("failed to write body")
	}
	return f
}
