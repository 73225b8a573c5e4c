package service

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/dirk.krummacker/relations-service/internal/crm"
	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	api "gitlab.com/dirk.krummacker/relations-service/pkg/model"
)

const secret = "unit-test-secret"

// testService is the REST API on top of a store, together with the tokens of two users.
type testService struct {
	router *gin.Engine
	alice  string
	bob    string
}

// initializeRelationsService sets up the service with the given store and returns a handle to
// the gin engine against which requests can be executed.
func initializeRelationsService(t *testing.T, store docstore.Store) testService {
	gin.SetMode(gin.ReleaseMode)
	verifier, err := identity.NewVerifier(secret, "")
	require.NoError(t, err)
	alice, err := verifier.Issue("alice", time.Hour)
	require.NoError(t, err)
	bob, err := verifier.Issue("bob", time.Hour)
	require.NoError(t, err)
	router := SetupHttpRouter(Options{
		Repository: crm.New(store, zerolog.Nop()),
		Store:      store,
		Verifier:   verifier,
		Logger:     zerolog.Nop(),
	})
	return testService{router: router, alice: alice, bob: bob}
}

// runTest executes the HTTP request with the specified arguments and returns the response.
func runTest(s testService, token string, method string, url string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(recorder, request)
	return recorder
}

// decode unmarshals the response body.
func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &v), recorder.Body.String())
	return v
}

func message(t *testing.T, recorder *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, recorder)["message"]
}

// createContact posts a contact and returns its id.
func createContact(t *testing.T, s testService, token string, body string) string {
	recorder := runTest(s, token, "POST", "/contacts", body)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decode[api.Contact](t, recorder).Id
}

// TestHealth expects the health check to follow the reachability of the store, without
// requiring a token.
func TestHealth(t *testing.T) {
	store := docstore.NewMemoryStore()
	s := initializeRelationsService(t, store)
	assert.Equal(t, http.StatusOK, runTest(s, "", "GET", "/healthz", "").Code)
	require.NoError(t, store.Close())
	assert.Equal(t, http.StatusServiceUnavailable, runTest(s, "", "GET", "/healthz", "").Code)
}

// TestUnauthenticated expects every API call without a valid token to be answered with the
// UNAUTHORIZED status code.
func TestUnauthenticated(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	for _, token := range []string{"", "not-a-token"} {
		recorder := runTest(s, token, "GET", "/contacts", "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, runTest(s, "", "POST", "/interactions", "{}").Code)
}

// TestContactHappyPath executes a POST, GET, PUT, and DELETE with valid data.
func TestContactHappyPath(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())

	// create
	recorder := runTest(s, s.alice, "POST", "/contacts", `
		{
			"name": " Erika Mustermann ",
			"phone": "+49 0815 4711",
			"birthday": "1969-03-02"
		}
	`)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	var postBody map[string]interface{}
	json.Unmarshal(recorder.Body.Bytes(), &postBody)
	assert.Equal(t, "Erika Mustermann", postBody["name"])
	assert.Equal(t, "+49 0815 4711", postBody["phone"])
	assert.Equal(t, "1969-03-02T00:00:00Z", postBody["birthday"])
	assert.Equal(t, "alice", postBody["userId"])
	assert.Equal(t, 0.0, postBody["interactions"])
	assert.Nil(t, postBody["email"])
	id := postBody["id"].(string)

	// find
	recorder = runTest(s, s.alice, "GET", "/contacts/"+id, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Erika Mustermann", decode[api.Contact](t, recorder).Name)

	// update a subset of the values
	recorder = runTest(s, s.alice, "PUT", "/contacts/"+id, `{"phone": "", "email": "erika@example.org", "birthday": null}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	updated := decode[api.Contact](t, recorder)
	assert.Equal(t, "Erika Mustermann", updated.Name)
	assert.Nil(t, updated.Phone)
	assert.Nil(t, updated.Birthday)
	assert.Equal(t, "erika@example.org", *updated.Email)

	// delete needs a confirmation
	recorder = runTest(s, s.alice, "DELETE", "/contacts/"+id, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "confirmation required", message(t, recorder))
	recorder = runTest(s, s.alice, "DELETE", "/contacts/"+id+"?confirm=true", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = runTest(s, s.alice, "GET", "/contacts/"+id, "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "contact not found", message(t, recorder))
}

// TestPostInvalidBodies executes POST requests with invalid bodies. It expects that the HTTP
// requests are all answered with the BAD REQUEST status code.
func TestPostInvalidBodies(t *testing.T) {
	invalidRequestBodies := []string{
		"",
		"{}",
		"not JSON",
		`{"name": "   "}`,
		`{"name": "Erika", "birthday": "02.03.1969"}`,
		`{
			"name": "Erika Mustermann"
			"phone": "+49 0815 4711"
		}`, // commas missing
	}
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	for _, body := range invalidRequestBodies {
		recorder := runTest(s, s.alice, "POST", "/contacts", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
	recorder := runTest(s, s.alice, "GET", "/contacts", "")
	assert.Equal(t, "[]", recorder.Body.String())
}

// TestPutInvalidBodies executes PUT requests with invalid bodies. It expects that the HTTP
// requests are all answered with the BAD REQUEST status code.
func TestPutInvalidBodies(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	id := createContact(t, s, s.alice, `{"name": "Rudi Völler"}`)
	for _, body := range []string{"", "not JSON", `{"name": ""}`} {
		recorder := runTest(s, s.alice, "PUT", "/contacts/"+id, body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
	recorder := runTest(s, s.alice, "PUT", "/contacts/"+id, "{}")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "no values to be updated", message(t, recorder))
}

// TestPutNullRemovesValues expects null in a PUT body to remove the optional value, while
// missing fields stay unchanged.
func TestPutNullRemovesValues(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	id := createContact(t, s, s.alice, `{"name": "Rudi Völler", "email": "rudi@example.org", "phone": "+49 30 1990", "notes": "Tante Käthe"}`)

	recorder := runTest(s, s.alice, "PUT", "/contacts/"+id, `{"email": null, "notes": null}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	contact := decode[api.Contact](t, runTest(s, s.alice, "GET", "/contacts/"+id, ""))
	assert.Nil(t, contact.Email)
	assert.Nil(t, contact.Notes)
	require.NotNil(t, contact.Phone)
	assert.Equal(t, "+49 30 1990", *contact.Phone)
}

// TestUnknownID expects calls for a contact that does not exist to be answered with the NOT
// FOUND status code.
func TestUnknownID(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	for _, call := range []struct{ method, url, body string }{
		{"GET", "/contacts/9999", ""},
		{"PUT", "/contacts/9999", `{"name": "Rudi Völler"}`},
		{"DELETE", "/contacts/9999?confirm=true", ""},
		{"POST", "/contacts/9999/recount", ""},
		{"GET", "/interactions/9999", ""},
		{"PUT", "/interactions/9999", `{"title": "Tea"}`},
		{"DELETE", "/interactions/9999?confirm=true", ""},
	} {
		recorder := runTest(s, s.alice, call.method, call.url, call.body)
		assert.Equal(t, http.StatusNotFound, recorder.Code, call.method+" "+call.url)
	}
}

// TestOtherUsersContacts expects contacts of another user to be neither listed nor
// reachable.
func TestOtherUsersContacts(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	id := createContact(t, s, s.alice, `{"name": "Ada"}`)
	createContact(t, s, s.bob, `{"name": "Alan"}`)

	contacts := decode[[]api.Contact](t, runTest(s, s.bob, "GET", "/contacts", ""))
	require.Len(t, contacts, 1)
	assert.Equal(t, "Alan", contacts[0].Name)

	assert.Equal(t, http.StatusNotFound, runTest(s, s.bob, "GET", "/contacts/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, runTest(s, s.bob, "DELETE", "/contacts/"+id+"?confirm=true", "").Code)
	assert.Equal(t, http.StatusOK, runTest(s, s.alice, "GET", "/contacts/"+id, "").Code)
}

// TestPaging expects contacts sorted by name and cut by limit and offset.
func TestPaging(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	for _, name := range []string{"Dora", "anton", "Carla", "Berta", "Emil"} {
		createContact(t, s, s.alice, `{"name": "`+name+`"}`)
	}
	contacts := decode[[]api.Contact](t, runTest(s, s.alice, "GET", "/contacts?limit=2&offset=1", ""))
	require.Len(t, contacts, 2)
	assert.Equal(t, "Berta", contacts[0].Name)
	assert.Equal(t, "Carla", contacts[1].Name)

	contacts = decode[[]api.Contact](t, runTest(s, s.alice, "GET", "/contacts?offset=10", ""))
	assert.Empty(t, contacts)

	for _, query := range []string{"limit=0", "limit=x", "offset=-1"} {
		recorder := runTest(s, s.alice, "GET", "/contacts?"+query, "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code, query)
	}
}

// TestInteractionHappyPath follows an interaction through its life and checks the count and
// name kept on the contact side.
func TestInteractionHappyPath(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	contactID := createContact(t, s, s.alice, `{"name": "Ada"}`)

	recorder := runTest(s, s.alice, "POST", "/interactions", `{
		"title": "Coffee",
		"date": "2024-01-01",
		"contactId": "`+contactID+`",
		"notes": "<p>Talked about <b>engines</b></p>"
	}`)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	created := decode[api.Interaction](t, recorder)
	assert.Equal(t, "Ada", *created.ContactName)
	assert.True(t, *created.ContactExists)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), created.Date)

	contact := decode[api.Contact](t, runTest(s, s.alice, "GET", "/contacts/"+contactID, ""))
	assert.Equal(t, 1, contact.Interactions)

	list := decode[[]api.Interaction](t, runTest(s, s.alice, "GET", "/interactions", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "Talked about engines", list[0].NotesPreview)

	list = decode[[]api.Interaction](t, runTest(s, s.alice, "GET", "/contacts/"+contactID+"/interactions", ""))
	assert.Len(t, list, 1)

	recorder = runTest(s, s.alice, "PUT", "/interactions/"+created.Id, `{"title": "Espresso", "date": "2024-01-02T09:30:00+01:00"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	updated := decode[api.Interaction](t, recorder)
	assert.Equal(t, "Espresso", updated.Title)
	assert.Equal(t, time.Date(2024, time.January, 2, 8, 30, 0, 0, time.UTC), updated.Date)

	recorder = runTest(s, s.alice, "PUT", "/interactions/"+created.Id, `{"date": null}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// the interaction outlives its contact
	require.Equal(t, http.StatusOK, runTest(s, s.alice, "DELETE", "/contacts/"+contactID+"?confirm=true", "").Code)
	detail := decode[api.Interaction](t, runTest(s, s.alice, "GET", "/interactions/"+created.Id, ""))
	assert.False(t, *detail.ContactExists)
	assert.Equal(t, "Ada", *detail.ContactName)

	assert.Equal(t, http.StatusBadRequest, runTest(s, s.alice, "DELETE", "/interactions/"+created.Id, "").Code)
	assert.Equal(t, http.StatusOK, runTest(s, s.alice, "DELETE", "/interactions/"+created.Id+"?confirm=true", "").Code)
	assert.Equal(t, http.StatusNotFound, runTest(s, s.alice, "GET", "/interactions/"+created.Id, "").Code)
}

// TestCreateInteractionWithNewContact expects the contact to be created from the free-text
// contact name.
func TestCreateInteractionWithNewContact(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())

	recorder := runTest(s, s.alice, "POST", "/interactions", `{"title": "Lunch", "date": "2024-02-01", "contactName": "Hans Wurst"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	freeText := decode[api.Interaction](t, recorder)
	assert.Nil(t, freeText.ContactId)
	assert.Nil(t, freeText.ContactExists)
	assert.Empty(t, decode[[]api.Contact](t, runTest(s, s.alice, "GET", "/contacts", "")))

	recorder = runTest(s, s.alice, "POST", "/interactions?createContact=true", `{"title": "Dinner", "date": "2024-02-02", "contactName": "Hans Wurst"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	linked := decode[api.Interaction](t, recorder)
	require.NotNil(t, linked.ContactId)

	contact := decode[api.Contact](t, runTest(s, s.alice, "GET", "/contacts/"+*linked.ContactId, ""))
	assert.Equal(t, "Hans Wurst", contact.Name)
	assert.Equal(t, 1, contact.Interactions)
}

func TestCreateInteractionInvalidBodies(t *testing.T) {
	s := initializeRelationsService(t, docstore.NewMemoryStore())
	for _, body := range []string{"", "not JSON", `{"title": "Tea"}`, `{"date": "2024-01-01"}`, `{"title": "Tea", "date": "soon"}`} {
		recorder := runTest(s, s.alice, "POST", "/interactions", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
}

func TestRecount(t *testing.T) {
	store := docstore.NewMemoryStore()
	s := initializeRelationsService(t, store)
	id := createContact(t, s, s.alice, `{"name": "Ada"}`)
	require.NoError(t, store.Update(t.Context(), docstore.Contacts, id, docstore.Fields{"interactions": 9}))

	recorder := runTest(s, s.alice, "POST", "/contacts/"+id+"/recount", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, api.Recount{Id: id, Interactions: 0}, decode[api.Recount](t, recorder))
}

// createMockObjects builds a mock database handle and a mock object for defining our expected SQL
// calls.
func createMockObjects(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	return db, mock
}

// expectPreparedStatements instructs the mock object to expect that several statements are being
// prepared.
func expectPreparedStatements(mock sqlmock.Sqlmock) {
	for _, c := range docstore.Collections {
		mock.ExpectPrepare("INSERT INTO " + c)
		mock.ExpectPrepare("SELECT id, body FROM " + c + " WHERE id = \\?")
		mock.ExpectPrepare("DELETE FROM " + c + " WHERE id = \\?")
	}
}

// initializeSQLService sets up the service on a MySQL store backed by the mock database.
func initializeSQLService(t *testing.T) (testService, sqlmock.Sqlmock) {
	db, mock := createMockObjects(t)
	t.Cleanup(func() { db.Close() })
	expectPreparedStatements(mock)
	store, err := docstore.NewSQLStore(db, "mysql")
	require.NoError(t, err)
	return initializeRelationsService(t, store), mock
}

// TestGetFromDatabase executes a GET request for a contact stored in MySQL. It expects that
// the JSON for the contact is returned with the persisted timestamps converted.
func TestGetFromDatabase(t *testing.T) {
	s, mock := initializeSQLService(t)

	// Define expectations on SQL statements
	rows := mock.NewRows([]string{"id", "body"}).
		AddRow("29", `{
			"userId": "alice",
			"name": "Erika Mustermann",
			"phone": "+49 0815 4711",
			"birthday": {"_seconds": -26352000, "_nanoseconds": 0},
			"interactions": 3,
			"createdAt": {"seconds": 1704067200, "nanoseconds": 0},
			"updatedAt": "2024-01-01T00:00:00.000Z"
		}`)
	mock.ExpectQuery("SELECT id, body FROM contacts WHERE id = \\?").
		WithArgs("29").
		WillReturnRows(rows)

	// Run test and compare results
	recorder := runTest(s, s.alice, "GET", "/contacts/29", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	var getBody map[string]interface{}
	json.Unmarshal(recorder.Body.Bytes(), &getBody)
	assert.Equal(t, "29", getBody["id"])
	assert.Equal(t, "Erika Mustermann", getBody["name"])
	assert.Equal(t, "+49 0815 4711", getBody["phone"])
	assert.Equal(t, "1969-03-02T00:00:00Z", getBody["birthday"])
	assert.Equal(t, 3.0, getBody["interactions"])
	assert.Equal(t, "2024-01-01T00:00:00Z", getBody["createdAt"])
	assert.Equal(t, "2024-01-01T00:00:00Z", getBody["updatedAt"])
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestDatabaseErrors expects failures of the database to be answered with a status code that
// tells the client whether retrying can help.
func TestDatabaseErrors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{mysql.ErrInvalidConn, http.StatusServiceUnavailable, ""},
		{&mysql.MySQLError{Number: 1142, Message: "SELECT command denied"}, http.StatusForbidden, "permission denied while getting contact"},
		{&mysql.MySQLError{Number: 1064, Message: "syntax"}, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		s, mock := initializeSQLService(t)
		mock.ExpectQuery("SELECT id, body FROM contacts WHERE id = \\?").
			WithArgs("29").
			WillReturnError(tt.err)

		recorder := runTest(s, s.alice, "GET", "/contacts/29", "")
		assert.Equal(t, tt.status, recorder.Code, tt.err.Error())
		if tt.message != "" {
			assert.Equal(t, tt.message, message(t, recorder))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	}
}
