// Package testutil drives MCP servers in-process from tests.
//
//	func TestGreet(t *testing.T) {
//	    srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
//	    srv.Tool("greet").Handler(func(in GreetInput) (string, error) {
//	        return "Hello, " + in.Name, nil
//	    })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    text, err := tc.CallToolText("greet", map[string]any{"name": "World"})
//	    require.NoError(t, err)
//	    assert.Equal(t, "Hello, World", text)
//	}
//
// Requests and results are encoded to JSON and back, so handlers see the
// same bytes a real transport would deliver.
package testutil
