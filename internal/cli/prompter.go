package cli

// Prompter abstracts the interactive prompts so command tests can stub
// them out.
type Prompter interface {
	Select(label string, items []string, defaultValue string) (int, string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
