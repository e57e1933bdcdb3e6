package app_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/app"
	"github.com/jwalitptl/clinic-flow/internal/config"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/pkg/imagestore"
	"github.com/jwalitptl/clinic-flow/pkg/logger"
	"github.com/jwalitptl/clinic-flow/pkg/messaging"
)

const pin = "1234"

type fakeUploader struct {
	uploaded []imagestore.Image
}

func (f *fakeUploader) Upload(ctx context.Context, img imagestore.Image) (string, error) {
	f.uploaded = append(f.uploaded, img)
	return "https://images.example/" + img.FileName, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

type clinic struct {
	t        *testing.T
	handler  http.Handler
	api      *app.App
	store    *repository.Store
	broker   *messaging.MemoryBroker
	uploader *fakeUploader
	cfg      *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Mode: "test", RequestTimeout: 5 * time.Second},
		Storage: config.StorageConfig{Driver: config.StorageMemory},
		Redis:   config.RedisConfig{Channel: "clinic.events"},
		Session: config.SessionConfig{
			Secret:         "0123456789abcdef0123456789abcdef",
			TTL:            time.Hour,
			RosterCacheTTL: time.Minute,
			BcryptCost:     4,
		},
		Billing: config.BillingConfig{ConsultationService: "Consultation", ConsultationFallbackFee: 50000},
		Queue:   config.QueueConfig{PollInterval: 5 * time.Second},
		CORS:    config.CORSConfig{AllowOrigins: []string{"*"}},
		Outbox: config.OutboxConfig{
			BatchSize:     10,
			PollInterval:  time.Second,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
			MaxRetries:    3,
		},
	}
}

func newClinic(t *testing.T) *clinic {
	t.Helper()
	cfg := testConfig()
	store := memory.NewStore()
	broker := messaging.NewMemoryBroker()
	uploader := &fakeUploader{}

	api, err := app.New(app.Deps{Config: cfg, Store: store, Broker: broker, Uploader: uploader})
	require.NoError(t, err)

	ctx := context.Background()
	for _, e := range []model.CreateCatalogEntryRequest{
		{Name: "Consultation", Price: 50000},
		{Name: "Blood test", Price: 120000},
		{Name: "X-ray", Price: 250000},
	} {
		_, err := api.Services.Admin.CreateCatalogEntry(ctx, &e)
		require.NoError(t, err)
	}
	price := int64(1000)
	_, err = api.Services.Admin.CreateMedication(ctx, &model.CreateMedicationRequest{Name: "Paracetamol", Unit: "tablet", Price: &price})
	require.NoError(t, err)

	return &clinic{
		t:        t,
		handler:  api.Router.Engine(),
		api:      api,
		store:    store,
		broker:   broker,
		uploader: uploader,
		cfg:      cfg,
	}
}

// login creates a staff member with role and returns a session token
func (c *clinic) login(role model.Role) (string, uuid.UUID) {
	c.t.Helper()
	staff, err := c.api.Services.Admin.CreateStaff(context.Background(), &model.CreateStaffRequest{
		Name: string(role) + " " + uuid.NewString()[:4],
		Role: role,
		PIN:  pin,
	})
	require.NoError(c.t, err)

	w, env := c.do(http.MethodPost, "/api/v1/sessions", "", map[string]interface{}{
		"staff_id": staff.ID,
		"pin":      pin,
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())

	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(c.t, sess.Token)
	return sess.Token, staff.ID
}

func (c *clinic) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestVisitFlow(t *testing.T) {
	c := newClinic(t)
	reception, _ := c.login(model.RoleReceptionist)
	doctor, doctorID := c.login(model.RoleDoctor)
	tech, techID := c.login(model.RoleTechnician)

	// register a new patient with their first visit
	w, env := c.do(http.MethodPost, "/api/v1/patients", reception, map[string]interface{}{
		"patient": map[string]interface{}{"full_name": "Nguyen Van A", "phone": "0901234567", "gender": "Male"},
		"reason":  "fever",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[struct {
		Patient *model.Patient `json:"patient"`
		Visit   *model.Visit   `json:"visit"`
	}](t, env.Data)
	visitID := registered.Visit.ID
	assert.Equal(t, model.StatusWaitingForExam, registered.Visit.Status)

	// a second open visit for the same patient is refused
	w, env = c.do(http.MethodPost, "/api/v1/visits", reception, map[string]interface{}{
		"patient_id": registered.Patient.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_ACTIVE_VISIT", env.Kind)

	// the visit shows up in the exam queue
	w, env = c.do(http.MethodGet, "/api/v1/queues/WaitingForExam", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[model.Queue](t, env.Data)
	require.Len(t, queue.Entries, 1)
	assert.Equal(t, "Nguyen Van A", queue.Entries[0].Patient.FullName)

	// doctor claims the visit
	transitions := "/api/v1/visits/" + visitID.String() + "/transitions"
	w, env = c.do(http.MethodPost, transitions, doctor, map[string]string{"from": "WaitingForExam", "to": "Examing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	claimed := decode[model.Visit](t, env.Data)
	require.NotNil(t, claimed.DoctorBy)
	assert.Equal(t, doctorID, *claimed.DoctorBy)

	// a second screen working from the stale status loses
	w, env = c.do(http.MethodPost, transitions, doctor, map[string]string{"from": "WaitingForExam", "to": "Examing"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", env.Kind)
	current := decode[model.Visit](t, env.Data)
	assert.Equal(t, model.StatusExaming, current.Status)

	w, env = c.do(http.MethodGet, "/api/v1/doctors/me/active", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Visit](t, env.Data), 1)

	// order a service; the visit moves to the technician queue
	w, env = c.do(http.MethodPost, "/api/v1/visits/"+visitID.String()+"/services", doctor, map[string]interface{}{
		"service_types": []string{"blood test"},
		"reason":        "fever, suspect infection",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ordered := decode[struct {
		Visit    *model.Visit          `json:"visit"`
		Services []*model.ServiceOrder `json:"services"`
	}](t, env.Data)
	assert.Equal(t, model.StatusWaitingForService, ordered.Visit.Status)
	require.Len(t, ordered.Services, 1)
	assert.Equal(t, "Blood test", ordered.Services[0].ServiceType)

	w, env = c.do(http.MethodGet, "/api/v1/queues/WaitingForService?service_type=Blood%20test", tech, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[model.Queue](t, env.Data).Entries, 1)

	// the technician completes it with an image and the visit returns to the doctor
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	w, env = c.do(http.MethodPost, "/api/v1/services/"+ordered.Services[0].ID.String()+"/complete", tech, map[string]string{
		"result_text": "WBC 12k",
		"image":       image,
		"file_name":   "../../cbc.png",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completed := decode[struct {
		Order *model.ServiceOrder `json:"order"`
		Visit *model.Visit        `json:"visit"`
	}](t, env.Data)
	assert.Equal(t, model.ServiceCompleted, completed.Order.Status)
	assert.Equal(t, "https://images.example/cbc.png", completed.Order.ImageURL)
	require.NotNil(t, completed.Order.TechBy)
	assert.Equal(t, techID, *completed.Order.TechBy)
	require.NotNil(t, completed.Visit)
	assert.Equal(t, model.StatusReturnToDoctor, completed.Visit.Status)
	require.Len(t, c.uploader.uploaded, 1)
	assert.Equal(t, "image/png", c.uploader.uploaded[0].ContentType)

	// prescription then finish the exam
	w, _ = c.do(http.MethodPut, "/api/v1/visits/"+visitID.String()+"/prescription", doctor, map[string]interface{}{
		"lines": []map[string]interface{}{
			{"name": "Paracetamol", "quantity": 10, "dose": "1 tablet every 6 hours"},
			{"name": "Herbal tea", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = c.do(http.MethodGet, "/api/v1/visits/"+visitID.String()+"/prescription/print", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Paracetamol")

	conclusion := "viral infection"
	w, env = c.do(http.MethodPost, "/api/v1/visits/"+visitID.String()+"/finish", doctor, map[string]interface{}{
		"from":       "ReturnToDoctor",
		"conclusion": conclusion,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	finished := decode[model.Visit](t, env.Data)
	assert.Equal(t, model.StatusReadyForPayment, finished.Status)
	assert.Equal(t, conclusion, finished.Conclusion)

	// consultation + blood test + 10 paracetamol; the tea is self procured
	w, env = c.do(http.MethodGet, "/api/v1/visits/"+visitID.String()+"/bill", reception, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bill := decode[model.Bill](t, env.Data)
	assert.Equal(t, int64(50000+120000+10*1000), bill.Total)
	require.Len(t, bill.Items, 4)
	assert.True(t, bill.Items[3].SelfProcured)

	// a total that no longer matches the bill is refused
	w, _ = c.do(http.MethodPost, "/api/v1/visits/"+visitID.String()+"/payment", reception, map[string]int64{"confirmed_total": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = c.do(http.MethodPost, "/api/v1/visits/"+visitID.String()+"/payment", reception, map[string]int64{"confirmed_total": bill.Total})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[struct {
		Visit *model.Visit `json:"visit"`
	}](t, env.Data)
	assert.Equal(t, model.StatusDone, paid.Visit.Status)
	require.NotNil(t, paid.Visit.TotalAmount)
	assert.Equal(t, bill.Total, *paid.Visit.TotalAmount)

	// the audit trail records every step
	w, env = c.do(http.MethodGet, "/api/v1/visits/"+visitID.String()+"/transitions", reception, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]model.VisitTransition](t, env.Data)
	var path []model.VisitStatus
	for _, h := range history {
		path = append(path, h.ToStatus)
	}
	assert.Equal(t, []model.VisitStatus{
		model.StatusExaming,
		model.StatusWaitingForService,
		model.StatusReturnToDoctor,
		model.StatusReadyForPayment,
		model.StatusDone,
	}, path)

	// once closed, the patient may open a new visit
	w, _ = c.do(http.MethodPost, "/api/v1/visits", reception, map[string]interface{}{
		"patient_id": registered.Patient.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRoleGates(t *testing.T) {
	c := newClinic(t)
	reception, _ := c.login(model.RoleReceptionist)
	admin, _ := c.login(model.RoleAdmin)

	w, _ := c.do(http.MethodGet, "/api/v1/patients?q=x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = c.do(http.MethodGet, "/api/v1/admin/staff", reception, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := c.do(http.MethodGet, "/api/v1/admin/staff", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Staff](t, env.Data), 2)

	// reference lists are readable by every role
	w, env = c.do(http.MethodGet, "/api/v1/catalog?active=true", reception, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.CatalogEntry](t, env.Data), 3)

	// receptionists cannot claim a visit
	w, env = c.do(http.MethodPost, "/api/v1/patients", reception, map[string]interface{}{
		"patient": map[string]interface{}{"full_name": "Tran Thi B"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	visit := decode[struct {
		Visit *model.Visit `json:"visit"`
	}](t, env.Data).Visit
	w, env = c.do(http.MethodPost, "/api/v1/visits/"+visit.ID.String()+"/transitions", reception, map[string]string{
		"from": "WaitingForExam", "to": "Examing",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Kind)
}

func TestOnlyPaymentClosesVisit(t *testing.T) {
	c := newClinic(t)
	reception, _ := c.login(model.RoleReceptionist)
	doctor, _ := c.login(model.RoleDoctor)

	w, env := c.do(http.MethodPost, "/api/v1/patients", reception, map[string]interface{}{
		"patient": map[string]interface{}{"full_name": "Le Van C"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	visitID := decode[struct {
		Visit *model.Visit `json:"visit"`
	}](t, env.Data).Visit.ID
	transitions := "/api/v1/visits/" + visitID.String() + "/transitions"

	w, _ = c.do(http.MethodPost, transitions, doctor, map[string]string{"from": "WaitingForExam", "to": "Examing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = c.do(http.MethodPost, transitions, doctor, map[string]string{"from": "Examing", "to": "ReadyForPayment"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = c.do(http.MethodGet, "/api/v1/visits/"+visitID.String()+"/bill", reception, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(50000), decode[model.Bill](t, env.Data).Total)

	// a direct move to Done is refused whatever total is sent along
	w, env = c.do(http.MethodPost, transitions, reception, map[string]interface{}{
		"from": "ReadyForPayment", "to": "Done", "total_amount": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", env.Kind)

	w, env = c.do(http.MethodGet, "/api/v1/visits/"+visitID.String(), reception, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	current := decode[model.VisitDetail](t, env.Data).Visit
	assert.Equal(t, model.StatusReadyForPayment, current.Status)
	assert.Nil(t, current.TotalAmount)

	w, env = c.do(http.MethodPost, "/api/v1/visits/"+visitID.String()+"/payment", reception, map[string]int64{"confirmed_total": 50000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[struct {
		Visit *model.Visit `json:"visit"`
	}](t, env.Data)
	assert.Equal(t, model.StatusDone, paid.Visit.Status)
	assert.Equal(t, int64(50000), *paid.Visit.TotalAmount)
}

func TestDeactivatedStaffLosesSession(t *testing.T) {
	c := newClinic(t)
	admin, _ := c.login(model.RoleAdmin)
	doctor, doctorID := c.login(model.RoleDoctor)

	w, _ := c.do(http.MethodGet, "/api/v1/sessions/me", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodPost, "/api/v1/admin/staff/"+doctorID.String()+"/toggle", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = c.do(http.MethodGet, "/api/v1/sessions/me", doctor, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOutboxRelaysStatusChanges(t *testing.T) {
	c := newClinic(t)
	reception, _ := c.login(model.RoleReceptionist)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := c.broker.Subscribe(ctx, c.cfg.Redis.Channel)
	require.NoError(t, err)

	w, _ := c.do(http.MethodPost, "/api/v1/patients", reception, map[string]interface{}{
		"patient": map[string]interface{}{"full_name": "Le Van C"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	processor := app.NewOutboxProcessor(c.cfg, c.store, c.broker, logger.Nop(), c.api.Metrics)
	n, err := processor.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case raw := <-events:
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.EventVisitOpened, msg.Type)
	case <-ctx.Done():
		t.Fatal("no event relayed")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClinic(t)

	w, _ := c.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodGet, "/api/v1/health/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
