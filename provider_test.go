package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "graph.db"))
}

// fakeDotnet creates a stand-in dotnet binary so tool resolution does not
// depend on the host having the SDK installed.
func fakeDotnet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dotnet")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func testConfig(t *testing.T, location string) Config {
	t.Helper()
	return Config{
		Location:     location,
		AnalysisMode: "full",
		ProviderSpecificConfig: map[string]any{
			"dotnetPath": fakeDotnet(t),
		},
	}
}

const controllerSource = `using System;
using System.Web.Mvc;

namespace Sample.Web.Controllers
{
    public class HomeController : Controller
    {
        private readonly HttpContextBase context;

        public ActionResult Index()
        {
            ViewBag.Message = "Welcome";
            return View();
        }
    }
}
`

const modelSource = `using System;

namespace Sample.Web.Models
{
    public class Dinner
    {
        public int DinnerID { get; set; }
        public DateTime EventDate { get; set; }
    }
}
`

const webProjectFile = `<Project Sdk="Microsoft.NET.Sdk.Web">
  <PropertyGroup>
    <TargetFramework>net48</TargetFramework>
  </PropertyGroup>
  <ItemGroup>
    <PackageReference Include="Newtonsoft.Json" Version="13.0.3" />
  </ItemGroup>
</Project>
`

// writeTestProject lays out a small legacy ASP.NET MVC project. The net48
// target keeps init away from the SDK install path.
func writeTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Controllers"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Sample.Web.csproj"), []byte(webProjectFile), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Controllers", "HomeController.cs"), []byte(controllerSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Models", "Dinner.cs"), []byte(modelSource), 0o644))
	return dir
}

func TestCapabilities(t *testing.T) {
	p := newTestProvider(t)
	caps, err := p.Capabilities()
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "referenced", caps[0].Name)
}

func TestEvaluateBeforeInit(t *testing.T) {
	p := newTestProvider(t)
	resp, err := p.Evaluate(context.Background(), "referenced", []byte(`referenced: {pattern: "System*"}`))
	require.NoError(t, err)
	assert.False(t, resp.Successful)
	assert.Equal(t, "project may not be initialized", resp.Error)
	assert.Nil(t, resp.Response)
}

func TestEvaluateUnknownCapability(t *testing.T) {
	p := newTestProvider(t)
	resp, err := p.Evaluate(context.Background(), "dependency", []byte(`referenced: {pattern: "System*"}`))
	require.NoError(t, err)
	assert.False(t, resp.Successful)
	assert.Equal(t, "unable to find referenced capability", resp.Error)
}

func TestEvaluateMalformedCondition(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.Evaluate(context.Background(), "referenced", []byte("referenced: [not: a mapping"))
	require.Error(t, err)
}

func TestInitAndEvaluate(t *testing.T) {
	p := newTestProvider(t)
	dir := writeTestProject(t)

	require.NoError(t, p.Init(context.Background(), testConfig(t, dir)))

	resp, err := p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "System.Web.Mvc*"}`))
	require.NoError(t, err)
	require.True(t, resp.Successful, "error: %s", resp.Error)
	require.NotNil(t, resp.Response)
	assert.True(t, resp.Response.Matched)
	require.NotEmpty(t, resp.Response.IncidentContexts)

	for _, inc := range resp.Response.IncidentContexts {
		assert.True(t, strings.HasPrefix(inc.FileURI, "file://"), "URI %q", inc.FileURI)
		require.NotNil(t, inc.LineNumber)
		require.NotNil(t, inc.CodeLocation)
	}

	// Incidents are sorted by file URI then line number.
	for i := 1; i < len(resp.Response.IncidentContexts); i++ {
		prev, cur := resp.Response.IncidentContexts[i-1], resp.Response.IncidentContexts[i]
		if prev.FileURI == cur.FileURI {
			assert.LessOrEqual(t, *prev.LineNumber, *cur.LineNumber)
		} else {
			assert.Less(t, prev.FileURI, cur.FileURI)
		}
	}

	// One canonical incident per (file, line).
	type key struct {
		uri  string
		line int
	}
	seen := map[key]bool{}
	for _, inc := range resp.Response.IncidentContexts {
		k := key{uri: inc.FileURI, line: *inc.LineNumber}
		assert.False(t, seen[k], "duplicate incident for %s line %d", inc.FileURI, *inc.LineNumber)
		seen[k] = true
	}
}

func TestEvaluateNoMatches(t *testing.T) {
	p := newTestProvider(t)
	dir := writeTestProject(t)
	require.NoError(t, p.Init(context.Background(), testConfig(t, dir)))

	resp, err := p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "Grpc.Core*"}`))
	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.Response)
	assert.False(t, resp.Response.Matched)
	assert.Empty(t, resp.Response.IncidentContexts)
}

func TestEvaluateClassScope(t *testing.T) {
	p := newTestProvider(t)
	dir := writeTestProject(t)
	require.NoError(t, p.Init(context.Background(), testConfig(t, dir)))

	resp, err := p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "System.Web.Mvc.Controller", location: "CLASS"}`))
	require.NoError(t, err)
	require.True(t, resp.Successful, "error: %s", resp.Error)
	require.NotNil(t, resp.Response)
	assert.True(t, resp.Response.Matched, "base-class reference should match in CLASS scope")
}

func TestEvaluateResultsAreStable(t *testing.T) {
	p := newTestProvider(t)
	dir := writeTestProject(t)
	require.NoError(t, p.Init(context.Background(), testConfig(t, dir)))

	cond := []byte(`referenced: {pattern: "System*"}`)
	first, err := p.Evaluate(context.Background(), "referenced", cond)
	require.NoError(t, err)
	require.True(t, first.Successful)

	for i := 0; i < 3; i++ {
		again, err := p.Evaluate(context.Background(), "referenced", cond)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestInitFailsForEmptyLocation(t *testing.T) {
	p := newTestProvider(t)
	dir := t.TempDir()

	err := p.Init(context.Background(), testConfig(t, dir))
	require.Error(t, err)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)

	// A failed init leaves the provider uninitialized.
	resp, err := p.Evaluate(context.Background(), "referenced", []byte(`referenced: {pattern: "System*"}`))
	require.NoError(t, err)
	assert.Equal(t, "project may not be initialized", resp.Error)
}

func TestInitFailsForMissingDotnet(t *testing.T) {
	p := newTestProvider(t)
	cfg := Config{
		Location: writeTestProject(t),
		ProviderSpecificConfig: map[string]any{
			"dotnetPath": filepath.Join(t.TempDir(), "no-such-dotnet"),
		},
	}
	err := p.Init(context.Background(), cfg)
	require.Error(t, err)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "tool resolution", initErr.Stage)
}

func TestReinitReplacesProject(t *testing.T) {
	p := newTestProvider(t)
	first := writeTestProject(t)
	require.NoError(t, p.Init(context.Background(), testConfig(t, first)))

	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "Worker.cs"), []byte(`using Azure.Storage.Queues;

namespace Sample.Worker
{
    public class QueueWorker
    {
        private readonly QueueClient client;
    }
}
`), 0o644))
	require.NoError(t, p.Init(context.Background(), testConfig(t, second)))

	// The old project's references are gone; the new one's are visible.
	resp, err := p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "System.Web.Mvc*"}`))
	require.NoError(t, err)
	require.True(t, resp.Successful)
	assert.False(t, resp.Response.Matched)

	resp, err = p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "Azure.Storage.Queues*"}`))
	require.NoError(t, err)
	require.True(t, resp.Successful, "error: %s", resp.Error)
	assert.True(t, resp.Response.Matched)
}

func TestInitSurvivesSDKInstallFailure(t *testing.T) {
	p := newTestProvider(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "App.csproj"), []byte(`<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>
</Project>
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Program.cs"), []byte(`using System;

namespace Sample.App
{
    public class Program
    {
        public static void Main()
        {
            Console.WriteLine("hello");
        }
    }
}
`), 0o644))

	// A modern target triggers the SDK task; the failing script must only
	// degrade the graph, never the init call.
	script := filepath.Join(t.TempDir(), "dotnet-install.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	cfg := testConfig(t, dir)
	cfg.ProviderSpecificConfig["dotnetInstallScript"] = script
	require.NoError(t, p.Init(context.Background(), cfg))

	resp, err := p.Evaluate(context.Background(), "referenced",
		[]byte(`referenced: {pattern: "Console.WriteLine"}`))
	require.NoError(t, err)
	require.True(t, resp.Successful, "error: %s", resp.Error)
	assert.True(t, resp.Response.Matched)
}

func TestStopClearsProject(t *testing.T) {
	p := newTestProvider(t)
	dir := writeTestProject(t)
	require.NoError(t, p.Init(context.Background(), testConfig(t, dir)))
	require.NoError(t, p.Stop())

	resp, err := p.Evaluate(context.Background(), "referenced", []byte(`referenced: {pattern: "System*"}`))
	require.NoError(t, err)
	assert.Equal(t, "project may not be initialized", resp.Error)

	// Stop is idempotent.
	require.NoError(t, p.Stop())
}
