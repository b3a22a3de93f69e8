package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/prite36/farm-monitor/internal/config"
	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/importer"
	"github.com/prite36/farm-monitor/internal/slack"
)

const maxRequestBody = 1 << 20

// PlantRequest is the body of the add and edit endpoints. The cycle may be sent as a number or as text.
type PlantRequest struct {
	Field          string          `json:"field"`
	Species        string          `json:"species"`
	WaterCycleDays json.RawMessage `json:"waterCycleDays"`
}

func (req PlantRequest) cycleDays() (int, error) {
	raw := bytes.TrimSpace(req.WaterCycleDays)
	var text string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, farm.ErrValidation
		}
	} else {
		text = string(raw)
	}
	return farm.ParseCycleDays(text)
}

func decodePlantRequest(r *http.Request) (PlantRequest, int, error) {
	var req PlantRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		return req, 0, errors.New("error parsing request body")
	}
	cycle, err := req.cycleDays()
	if err != nil {
		return req, 0, err
	}
	return req, cycle, nil
}

// mutationFailed maps a mutator error to a response.
func mutationFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, farm.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[ERROR] Change applied but not saved: %v", err)
	writeError(w, http.StatusInternalServerError, "change applied but could not be saved")
}

func DashboardHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Dashboard())
	}
}

func ListPlantsHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Views())
	}
}

func GetPlantHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := reg.View(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "plant not found")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func AddPlantHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, cycle, err := decodePlantRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := reg.Add(r.Context(), req.Field, req.Species, cycle)
		if err != nil {
			mutationFailed(w, err)
			return
		}
		log.Printf("[INFO] Added plant %s (%s / %s)", p.ID, p.Field, p.Species)
		v, _ := reg.View(p.ID)
		writeJSON(w, http.StatusCreated, v)
	}
}

func EditPlantHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		req, cycle, err := decodePlantRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		found, err := reg.Edit(r.Context(), id, req.Field, req.Species, cycle)
		respondPlant(w, reg, id, found, err)
	}
}

func WaterPlantHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		found, err := reg.Water(r.Context(), id)
		respondPlant(w, reg, id, found, err)
	}
}

func ToggleProblemHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		found, err := reg.ToggleProblem(r.Context(), id)
		respondPlant(w, reg, id, found, err)
	}
}

func respondPlant(w http.ResponseWriter, reg *farm.Registry, id string, found bool, err error) {
	if err != nil {
		mutationFailed(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "plant not found")
		return
	}
	v, _ := reg.View(id)
	writeJSON(w, http.StatusOK, v)
}

func HistoryHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := reg.Plant(id); !ok {
			writeError(w, http.StatusNotFound, "plant not found")
			return
		}
		writeJSON(w, http.StatusOK, reg.History(id))
	}
}

type AutoWaterResponse struct {
	Watered int `json:"watered"`
}

func AutoWaterHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("[INFO] Received API request to water all overdue plants.")
		n, err := reg.AutoWaterOverdue(r.Context())
		if err != nil {
			mutationFailed(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AutoWaterResponse{Watered: n})
	}
}

// ImportHandler accepts a JSON array of records, or an xlsx workbook when sent with the spreadsheet content type.
func ImportHandler(reg *farm.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := importer.Parse(r.Header.Get("Content-Type"), r.Body)
		if err != nil {
			log.Printf("[WARN] Rejected import: %v", err)
			writeError(w, http.StatusBadRequest, "import file could not be read: expected an array of records")
			return
		}
		res, err := reg.ImportBatch(r.Context(), records)
		if err != nil {
			mutationFailed(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// SlackEventsHandler creates a new http.HandlerFunc for handling Slack events.
// It verifies the request signature using the signing secret.
func SlackEventsHandler(cfg *config.Config, reg *farm.Registry, client *slack.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verifier, err := slackapi.NewSecretsVerifier(r.Header, cfg.Slack.SigningSecret)
		if err != nil {
			log.Printf("[ERROR] Failed to create secrets verifier: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			log.Printf("[ERROR] Failed to read request body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if _, err := verifier.Write(body); err != nil {
			log.Printf("[ERROR] Failed to write body to verifier: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := verifier.Ensure(); err != nil {
			log.Printf("[WARN] Invalid Slack signature: %v", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			log.Printf("[ERROR] Failed to parse Slack event: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch eventsAPIEvent.Type {
		case slackevents.URLVerification:
			var challenge slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge.Challenge))
			log.Printf("[INFO] Responded to Slack URL verification challenge.")
		case slackevents.CallbackEvent:
			log.Printf("[INFO] Received a callback event: %v", eventsAPIEvent.InnerEvent.Type)
			if ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok && strings.Contains(strings.ToLower(ev.Text), "status") {
				go client.SendRichMessage(slack.NewSummaryMessage(reg.Dashboard()))
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}
