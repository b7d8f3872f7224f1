package api

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"can-decoder/internal/candump"
	"can-decoder/internal/catalog"
	"can-decoder/internal/decoder"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

const maxBodyBytes = 1 << 20

type catalogResponse struct {
	Count    int                        `json:"count"`
	Messages []models.MessageDescriptor `json:"messages"`
}

// handleCatalog lists every message of the current catalog
// GET /api/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{Messages: []models.MessageDescriptor{}}
	if c := s.catalogs.Load(); c != nil {
		resp.Messages = c.Messages()
		resp.Count = len(resp.Messages)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleCatalogMessage returns one message descriptor
// GET /api/catalog/0x7B
func (s *Server) handleCatalogMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseCANID(r.PathValue("id"))
	if err != nil {
		respondWithErr(w, err)
		return
	}
	c := s.catalogs.Load()
	if c == nil {
		respondWithErr(w, errors.Wrap(catalog.ErrUnknownMessage, "no catalog loaded"))
		return
	}
	msg, err := c.Lookup(id)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, msg)
}

// handleReload rebuilds the catalog from the configured DBC file and swaps
// it in. The previous catalog stays active when the rebuild fails.
// POST /api/catalog/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.dbcPath == "" {
		respondWithErr(w, badRequest("no DBC file configured"))
		return
	}
	c, err := catalog.LoadDBCFile(s.dbcPath)
	if err != nil {
		s.logger.Error().Err(err).Str("dbc", s.dbcPath).Msg("catalog reload failed")
		respondWithErr(w, err)
		return
	}
	s.catalogs.Swap(c)
	s.logger.Info().Str("dbc", s.dbcPath).Int("messages", c.Len()).Msg("catalog reloaded")
	respondWithJSON(w, http.StatusOK, map[string]any{"reloaded": true, "messages": c.Len()})
}

type decodeRequest struct {
	CANID     string `json:"can_id"`
	Data      string `json:"data"`
	Interface string `json:"interface,omitempty"`
}

func (req decodeRequest) message() (models.CANMessage, error) {
	id, err := parseCANID(req.CANID)
	if err != nil {
		return models.CANMessage{}, err
	}
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(req.Data)
	payload, err := hex.DecodeString(clean)
	if err != nil {
		return models.CANMessage{}, badRequest("invalid data %q: %v", req.Data, err)
	}
	frame, err := models.NewCANFrame(id, payload)
	if err != nil {
		return models.CANMessage{}, errors.Mark(err, errBadRequest)
	}
	return models.CANMessage{Frame: frame, Timestamp: time.Now().UTC(), Interface: req.Interface}, nil
}

// handleDecode decodes one frame against the catalog, or against ad-hoc
// definitions given in the signals query parameter
// POST /api/decode?signals=speed:0:16:le:0.01:0
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithErr(w, badRequest("invalid JSON body: %v", err))
		return
	}
	msg, err := req.message()
	if err != nil {
		respondWithErr(w, err)
		return
	}

	if specs := r.URL.Query().Get("signals"); specs != "" {
		signals, err := models.ParseSignalSpecs(specs)
		if err != nil {
			respondWithErr(w, errors.Mark(err, errBadRequest))
			return
		}
		name := r.URL.Query().Get("message")
		if name == "" {
			name = "adhoc"
		}
		desc := models.MessageDescriptor{ID: msg.Frame.Key(), Name: name, Extended: msg.Frame.Extended, Signals: signals}
		values, err := decoder.Decode(desc, msg.Frame.Payload())
		if err != nil {
			respondWithErr(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, models.DecodedMessage{
			Timestamp: msg.Timestamp,
			Interface: msg.Interface,
			FrameID:   desc.ID,
			Extended:  desc.Extended,
			Message:   desc.Name,
			Signals:   values,
		})
		return
	}

	decoded, err := s.decoder.DecodeFrame(msg)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decoded)
}

type parsedLine struct {
	Line        int                    `json:"line"`
	Timestamp   time.Time              `json:"timestamp"`
	Interface   string                 `json:"interface"`
	CANID       uint32                 `json:"can_id"`
	CANIDHex    string                 `json:"can_id_hex"`
	Data        string                 `json:"data"`
	Raw         string                 `json:"raw"`
	Decoded     *models.DecodedMessage `json:"decoded,omitempty"`
	DecodeError string                 `json:"decode_error,omitempty"`
}

type lineError struct {
	Line   int    `json:"line"`
	Rule   string `json:"rule,omitempty"`
	Offset int    `json:"offset"`
	Error  string `json:"error"`
}

type parseResponse struct {
	Entries []parsedLine `json:"entries"`
	Errors  []lineError  `json:"errors"`
}

// handleParse parses candump log lines from the request body, one per line.
// With decode=true every entry is also decoded against the catalog.
// POST /api/parse?decode=true
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	decode := r.URL.Query().Get("decode") == "true"
	resp := parseResponse{Entries: []parsedLine{}, Errors: []lineError{}}

	scanner := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		entry, err := candump.Parse(text)
		if err != nil {
			le := lineError{Line: line, Error: err.Error()}
			var perr *candump.ParseError
			if errors.As(err, &perr) {
				le.Rule = perr.Rule
				le.Offset = perr.Offset
			}
			resp.Errors = append(resp.Errors, le)
			continue
		}

		ts, err := entry.Timestamp.Time()
		if err != nil {
			resp.Errors = append(resp.Errors, lineError{Line: line, Error: err.Error()})
			continue
		}

		out := parsedLine{
			Line:      line,
			Timestamp: ts,
			Interface: entry.Interface,
			CANID:     entry.FrameID,
			CANIDHex:  hexID(entry.FrameID),
			Data:      hex.EncodeToString(entry.Payload()),
			Raw:       entry.String(),
		}
		if decode {
			s.decodeEntry(entry, &out)
		}
		resp.Entries = append(resp.Entries, out)
	}
	if err := scanner.Err(); err != nil {
		respondWithErr(w, badRequest("reading body: %v", err))
		return
	}

	status := http.StatusOK
	if len(resp.Entries) == 0 && len(resp.Errors) > 0 {
		status = http.StatusBadRequest
	}
	respondWithJSON(w, status, resp)
}

func (s *Server) decodeEntry(entry models.LogEntry, out *parsedLine) {
	msg, err := entry.Message()
	if err != nil {
		out.DecodeError = err.Error()
		return
	}
	decoded, err := s.decoder.DecodeFrame(msg)
	if err != nil {
		out.DecodeError = err.Error()
		return
	}
	out.Decoded = &decoded
}
