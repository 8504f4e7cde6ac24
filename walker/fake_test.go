package walker

import (
	"context"
	"fmt"

	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
)

type fakeQuestion struct {
	text    string
	options []string
	next    bool
	submit  bool
}

// fakeQuiz is a scripted Session mimicking the quiz page state machine.
type fakeQuiz struct {
	sel config.SelectorConfig

	questions  []fakeQuestion
	noStart    bool
	summary    string
	console    []string
	consoleErr error

	cur          int
	started      bool
	resultsShown bool

	navigated []string
	clicked   []int
	shots     int
	closes    int
}

func newFakeQuiz(sel config.SelectorConfig, qs ...fakeQuestion) *fakeQuiz {
	return &fakeQuiz{sel: sel, questions: qs}
}

func (f *fakeQuiz) opener() Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) { return f, nil })
}

func (f *fakeQuiz) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeQuiz) PageInfo(ctx context.Context) (string, string, error) {
	if len(f.navigated) == 0 {
		return "", "", fmt.Errorf("no page")
	}
	return "Quiz", f.navigated[len(f.navigated)-1], nil
}

func (f *fakeQuiz) notFound(sel string) error {
	return models.NewWalkError(models.ErrCodeElementNotFound, "element did not appear: "+sel, context.DeadlineExceeded)
}

func (f *fakeQuiz) WaitVisible(ctx context.Context, sel string) error {
	if sel == f.sel.QuestionText && f.started && !f.resultsShown {
		return nil
	}
	return f.notFound(sel)
}

func (f *fakeQuiz) Click(ctx context.Context, sel string) error {
	if sel == f.sel.StartButton && !f.noStart {
		f.started = true
		return nil
	}
	return f.notFound(sel)
}

func (f *fakeQuiz) ClickIfPresent(ctx context.Context, sel string) (bool, error) {
	q := f.questions[f.cur]
	switch {
	case sel == f.sel.NextButton && q.next:
		f.cur++
		return true, nil
	case sel == f.sel.SubmitButton && q.submit:
		f.resultsShown = true
		return true, nil
	}
	return false, nil
}

func (f *fakeQuiz) Text(ctx context.Context, sel string) (string, error) {
	return f.questions[f.cur].text, nil
}

func (f *fakeQuiz) OptionLabels(ctx context.Context, sel string) ([]string, error) {
	return f.questions[f.cur].options, nil
}

func (f *fakeQuiz) ClickNth(ctx context.Context, sel string, index int) error {
	if index < 0 || index >= len(f.questions[f.cur].options) {
		return f.notFound(sel)
	}
	f.clicked = append(f.clicked, index)
	return nil
}

func (f *fakeQuiz) HasClass(ctx context.Context, sel, class string) (bool, error) {
	if sel != f.sel.Results || class != f.sel.HiddenClass {
		return false, f.notFound(sel)
	}
	return !f.resultsShown, nil
}

func (f *fakeQuiz) InnerHTML(ctx context.Context, sel string) (string, error) {
	if sel != f.sel.Summary || f.summary == "" {
		return "", f.notFound(sel)
	}
	return f.summary, nil
}

func (f *fakeQuiz) Screenshot(ctx context.Context) ([]byte, error) {
	f.shots++
	return []byte("\x89PNG"), nil
}

func (f *fakeQuiz) ConsoleMessages() ([]string, error) {
	if f.consoleErr != nil {
		return nil, f.consoleErr
	}
	return f.console, nil
}

func (f *fakeQuiz) Close() error {
	f.closes++
	return nil
}
