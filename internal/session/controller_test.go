package session

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/metrics"
	"github.com/hpungsan/chatbox/internal/project"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func blinky() *project.Project {
	return &project.Project{
		ProjectName:          "My Cool Project!",
		Description:          "Blinks an LED.",
		BOM:                  []project.BOMItem{{Component: "LED", Quantity: 1, Description: "Red 5mm"}},
		ArduinoCode:          "void setup() {}",
		SchematicDescription: "1. LED anode to D13.",
		SchematicPNG:         project.EncodeSchematic(pngBytes),
	}
}

// fakeGenerator returns canned results. When gate is set, Generate blocks
// until it is closed and signals entered first.
type fakeGenerator struct {
	result  *project.Project
	err     error
	panicV  any
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*project.Project, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.result.Clone(), f.err
}

func TestNew_InitialState(t *testing.T) {
	c := New(&fakeGenerator{}, config.DefaultConfig(), nil, nil)
	s := c.State()

	assert.Equal(t, config.DefaultPrompt, s.Prompt)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Nil(t, s.Project)
	assert.Equal(t, TabCode, s.ActiveTab)
	require.Len(t, s.Chat, 1)
	assert.Equal(t, RoleSystem, s.Chat[0].Role)
	assert.Equal(t, WelcomeMessage, s.Chat[0].Content)
	_, err := ulid.Parse(s.Chat[0].ID)
	assert.NoError(t, err)
}

func TestNew_ConfiguredPrompt(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DefaultPrompt = "a plant watering robot"

	c := New(&fakeGenerator{}, cfg, nil, nil)
	assert.Equal(t, "a plant watering robot", c.State().Prompt)
}

func TestSubmit_Success(t *testing.T) {
	gen := &fakeGenerator{result: blinky()}
	c := New(gen, nil, nil, nil)

	require.True(t, c.Submit(context.Background(), "blink an LED"))

	s := c.State()
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.Prompt, "prompt is cleared on submit")
	if diff := cmp.Diff(blinky(), s.Project); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, s.Chat, 3)
	assert.Equal(t, RoleUser, s.Chat[1].Role)
	assert.Equal(t, "blink an LED", s.Chat[1].Content)
	assert.Equal(t, RoleModel, s.Chat[2].Role)
	assert.Equal(t, `I have generated the project "My Cool Project!". You can view the details in the output panel.`, s.Chat[2].Content)
	assert.Less(t, s.Chat[1].ID, s.Chat[2].ID, "ids sort by creation")
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	gen := &fakeGenerator{result: blinky()}
	c := New(gen, nil, nil, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.False(t, c.Submit(context.Background(), text))
	}

	assert.Zero(t, gen.calls.Load())
	assert.Len(t, c.State().Chat, 1)
}

func TestSubmit_UserEntryAppendedBeforeResult(t *testing.T) {
	gen := &fakeGenerator{
		result:  blinky(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := New(gen, nil, nil, nil)

	done := make(chan bool)
	go func() { done <- c.Submit(context.Background(), "blink") }()
	<-gen.entered

	s := c.State()
	assert.True(t, s.Loading)
	require.Len(t, s.Chat, 2)
	assert.Equal(t, RoleUser, s.Chat[1].Role)
	assert.Nil(t, s.Project)

	close(gen.gate)
	assert.True(t, <-done)
	assert.False(t, c.State().Loading)
}

func TestSubmit_WhileLoadingIsSilentNoop(t *testing.T) {
	gen := &fakeGenerator{
		result:  blinky(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	m := metrics.New()
	c := New(gen, nil, nil, m)

	done := make(chan bool)
	go func() { done <- c.Submit(context.Background(), "first") }()
	<-gen.entered

	assert.False(t, c.Submit(context.Background(), "second"))
	assert.Equal(t, int32(1), gen.calls.Load(), "no second outbound request")

	s := c.State()
	users := 0
	for _, e := range s.Chat {
		if e.Role == RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users, "no second user entry")
	assert.Empty(t, s.Error, "no error is surfaced for the ignored submit")

	close(gen.gate)
	require.True(t, <-done)
}

func TestSubmit_FailureKeepsGenericMessage(t *testing.T) {
	gen := &fakeGenerator{err: errors.NewGenerationFailed(stderrors.New("rpc error"))}
	c := New(gen, nil, nil, nil)

	require.True(t, c.Submit(context.Background(), "blink"))

	s := c.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Project, "no project is stored on failure")
	assert.Equal(t, errors.MsgGenerationFailed, s.Error)
	last := s.Chat[len(s.Chat)-1]
	assert.Equal(t, RoleSystem, last.Role)
	assert.Equal(t, "Error: "+errors.MsgGenerationFailed, last.Content)
}

func TestSubmit_ImageAbsentVerbatim(t *testing.T) {
	c := New(&fakeGenerator{err: errors.NewImageAbsent()}, nil, nil, nil)

	c.Submit(context.Background(), "blink")

	s := c.State()
	assert.Equal(t, "Image generation failed: the model did not return an image", s.Error)
	assert.Equal(t, "Error: Image generation failed: the model did not return an image", s.Chat[len(s.Chat)-1].Content)
}

func TestSubmit_PlainErrorIsNotLeaked(t *testing.T) {
	c := New(&fakeGenerator{err: stderrors.New("dial tcp: connection refused")}, nil, nil, nil)

	c.Submit(context.Background(), "blink")
	assert.Equal(t, errors.MsgGenerationFailed, c.State().Error)
}

func TestSubmit_PanicReleasesLoading(t *testing.T) {
	c := New(&fakeGenerator{panicV: "boom"}, nil, nil, nil)

	require.NotPanics(t, func() {
		assert.True(t, c.Submit(context.Background(), "blink"))
	})

	s := c.State()
	assert.False(t, s.Loading)
	assert.Equal(t, errors.MsgGenerationFailed, s.Error)

	// The session accepts new work afterwards.
	c.gen = &fakeGenerator{result: blinky()}
	assert.True(t, c.Submit(context.Background(), "again"))
	assert.NotNil(t, c.State().Project)
}

func TestSubmit_NilProjectWithoutError(t *testing.T) {
	c := New(&fakeGenerator{}, nil, nil, nil)

	c.Submit(context.Background(), "blink")

	s := c.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Project)
	assert.Equal(t, errors.MsgGenerationFailed, s.Error)
}

func TestSubmit_ClearsPreviousResultAndError(t *testing.T) {
	gen := &fakeGenerator{result: blinky()}
	c := New(gen, nil, nil, nil)
	c.Submit(context.Background(), "first")
	require.NotNil(t, c.State().Project)

	gen.result, gen.err = nil, errors.NewImageAbsent()
	c.Submit(context.Background(), "second")
	assert.Nil(t, c.State().Project)

	gen.result, gen.err = blinky(), nil
	c.Submit(context.Background(), "third")
	assert.Empty(t, c.State().Error)
}

func TestSelectTab(t *testing.T) {
	c := New(&fakeGenerator{}, nil, nil, nil)

	require.NoError(t, c.SelectTab(TabSchematic))
	assert.Equal(t, TabSchematic, c.State().ActiveTab)

	for _, bad := range []Tab{"", "gerber", "CODE"} {
		err := c.SelectTab(bad)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "tab %q", bad)
		assert.Equal(t, TabSchematic, c.State().ActiveTab, "state unchanged after %q", bad)
	}
}

func TestSetPrompt(t *testing.T) {
	c := New(&fakeGenerator{}, nil, nil, nil)
	c.SetPrompt("a thermometer")
	assert.Equal(t, "a thermometer", c.State().Prompt)
}

func TestExports_NoProject(t *testing.T) {
	c := New(&fakeGenerator{}, nil, nil, nil)

	for name, fn := range map[string]func() (any, error){
		"code":      func() (any, error) { a, err := c.ExportCode(); return a, err },
		"bom":       func() (any, error) { a, err := c.ExportBOM(); return a, err },
		"schematic": func() (any, error) { a, err := c.ExportSchematic(); return a, err },
	} {
		t.Run(name, func(t *testing.T) {
			a, err := fn()
			assert.NoError(t, err)
			assert.Nil(t, a)
		})
	}
	assert.Empty(t, c.State().Error)
}

func TestExports_WithProject(t *testing.T) {
	c := New(&fakeGenerator{result: blinky()}, nil, nil, nil)
	c.Submit(context.Background(), "blink")

	code, err := c.ExportCode()
	require.NoError(t, err)
	assert.Equal(t, "my_cool_project_.ino", code.Filename)
	assert.Equal(t, "text/plain", code.MIMEType)
	assert.Equal(t, "void setup() {}", string(code.Content))

	bom, err := c.ExportBOM()
	require.NoError(t, err)
	assert.Equal(t, "my_cool_project__bom.csv", bom.Filename)
	assert.Equal(t, "Component,Quantity,Description\n\"LED\",1,\"Red 5mm\"", string(bom.Content))

	img, err := c.ExportSchematic()
	require.NoError(t, err)
	assert.Equal(t, "my_cool_project__schematic.png", img.Filename)
	assert.Equal(t, pngBytes, img.Content)
}

func TestExportSchematic_InvalidPayload(t *testing.T) {
	p := blinky()
	p.SchematicPNG = "%%%not-base64%%%"
	c := New(&fakeGenerator{result: p}, nil, nil, nil)
	c.Submit(context.Background(), "blink")
	chatBefore := len(c.State().Chat)

	a, err := c.ExportSchematic()
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, errors.ErrExportFailed))

	s := c.State()
	assert.Equal(t, "Download failed: the generated image data is invalid", s.Error)
	assert.NotNil(t, s.Project, "result remains available")
	assert.Len(t, s.Chat, chatBefore, "export failures are not added to the transcript")
}

func TestStateIsSnapshot(t *testing.T) {
	c := New(&fakeGenerator{result: blinky()}, nil, nil, nil)
	c.Submit(context.Background(), "blink")

	s := c.State()
	s.Project.BOM[0].Quantity = 99
	s.Chat[0].Content = "tampered"

	fresh := c.State()
	assert.Equal(t, 1, fresh.Project.BOM[0].Quantity)
	assert.Equal(t, WelcomeMessage, fresh.Chat[0].Content)
}

func TestSubscribe(t *testing.T) {
	gen := &fakeGenerator{result: blinky()}
	c := New(gen, nil, nil, nil)

	var mu sync.Mutex
	var seen []State
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Submit(context.Background(), "blink")

	mu.Lock()
	require.Len(t, seen, 2, "one notification on start, one on completion")
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
	assert.NotNil(t, seen[1].Project)
	mu.Unlock()

	unsubscribe()
	unsubscribe()
	require.NoError(t, c.SelectTab(TabBOM))

	mu.Lock()
	assert.Len(t, seen, 2, "no notifications after unsubscribe")
	mu.Unlock()
}

func TestConcurrentSubmitsAdmitOne(t *testing.T) {
	gen := &fakeGenerator{
		result:  blinky(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	c := New(gen, nil, nil, nil)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Submit(context.Background(), "blink") {
				accepted.Add(1)
			}
		}()
	}

	<-gen.entered
	// Give the remaining goroutines a chance to hit the loading check.
	time.Sleep(20 * time.Millisecond)
	close(gen.gate)
	wg.Wait()

	// Late arrivals may start a fresh generation after the first completes,
	// but never while one is in flight.
	assert.Equal(t, accepted.Load(), gen.calls.Load())
	assert.False(t, c.State().Loading)
}

func TestSubmitAsync(t *testing.T) {
	gen := &fakeGenerator{
		result:  blinky(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := New(gen, nil, nil, nil)

	accepted, done := c.SubmitAsync(context.Background(), "blink")
	require.True(t, accepted)
	require.NotNil(t, done)
	assert.True(t, c.State().Loading, "loading is set before SubmitAsync returns")

	again, none := c.SubmitAsync(context.Background(), "blink again")
	assert.False(t, again)
	assert.Nil(t, none)

	<-gen.entered
	close(gen.gate)
	<-done

	s := c.State()
	assert.False(t, s.Loading)
	assert.NotNil(t, s.Project)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestErrorCodeTracksMessage(t *testing.T) {
	gen := &fakeGenerator{err: errors.NewImageAbsent()}
	c := New(gen, nil, nil, nil)

	c.Submit(context.Background(), "blink")
	assert.Equal(t, errors.ErrImageAbsent, c.State().ErrorCode)

	gen.err = stderrors.New("boom")
	c.Submit(context.Background(), "blink")
	assert.Equal(t, errors.ErrGenerationFailed, c.State().ErrorCode)

	gen.err, gen.result = nil, blinky()
	c.Submit(context.Background(), "blink")
	assert.Empty(t, c.State().ErrorCode)
}

func TestLastError(t *testing.T) {
	assert.Nil(t, State{}.LastError())

	err := State{Error: errors.MsgImageAbsent, ErrorCode: errors.ErrImageAbsent}.LastError()
	require.NotNil(t, err)
	assert.Equal(t, errors.ErrImageAbsent, err.Code)
	assert.Equal(t, 502, err.Status)
	assert.Equal(t, errors.MsgImageAbsent, err.Message)

	err = State{Error: errors.MsgInvalidImageData, ErrorCode: errors.ErrExportFailed}.LastError()
	require.NotNil(t, err)
	assert.Equal(t, 422, err.Status)

	err = State{Error: "something"}.LastError()
	require.NotNil(t, err)
	assert.Equal(t, errors.ErrGenerationFailed, err.Code)
}
