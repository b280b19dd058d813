package console

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const Version = "1.2.0"

var (
	// GlobalNoColors disables every color on stdout and stderr.
	GlobalNoColors bool

	out io.Writer = os.Stdout
)

// SetOutput redirects presentation output, mostly for tests.
func SetOutput(w io.Writer) {
	out = w
}

// Out is the writer presentation output goes to.
func Out() io.Writer {
	return out
}

// InitColors turns colors off when asked to or when stdout is not a terminal.
func InitColors(noColors bool) {
	GlobalNoColors = noColors || !term.IsTerminal(int(os.Stdout.Fd()))
	color.NoColor = GlobalNoColors
}

// palette is a harmonized set of color functions used by the banner and usage text.
type palette struct {
	border  func(a ...any) string
	title   func(a ...any) string
	version func(a ...any) string
	heading func(a ...any) string
	option  func(a ...any) string
	value   func(a ...any) string
}

func getBannerColors() palette {
	schemes := [][3]color.Attribute{
		{color.FgCyan, color.FgHiBlue, color.FgGreen},
		{color.FgMagenta, color.FgHiMagenta, color.FgYellow},
		{color.FgGreen, color.FgHiCyan, color.FgYellow},
		{color.FgBlue, color.FgHiCyan, color.FgGreen},
	}
	s := schemes[rand.Intn(len(schemes))]
	return palette{
		border:  color.New(s[0]).SprintFunc(),
		title:   color.New(color.Bold, color.FgHiWhite).SprintFunc(),
		version: color.New(s[2]).SprintFunc(),
		heading: color.New(color.Bold, color.FgHiWhite).SprintFunc(),
		option:  color.New(s[1]).SprintFunc(),
		value:   color.New(s[2]).SprintFunc(),
	}
}

func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text + strings.Repeat(" ", width-len(text)-padding)
}

// ShowBanner prints the boxed title.
func ShowBanner() {
	c := getBannerColors()
	const width = 72
	line1 := "akamaru - Threat Actor Intelligence Aggregator"
	line2 := fmt.Sprintf("Version %s", Version)

	fmt.Fprintln(out, c.border("╔"+strings.Repeat("═", width)+"╗"))
	fmt.Fprintln(out, c.border("║")+c.title(centerText(line1, width))+c.border("║"))
	fmt.Fprintln(out, c.border("║")+c.version(centerText(line2, width))+c.border("║"))
	fmt.Fprintln(out, c.border("╚"+strings.Repeat("═", width)+"╝"))
	fmt.Fprintln(out)
}

// PrintUsage prints the help screen.
func PrintUsage() {
	c := getBannerColors()
	ShowBanner()

	opt := func(flags, arg, desc string) {
		left := c.option(flags)
		pad := 30 - len(flags)
		if arg != "" {
			left += " " + c.value(arg)
			pad -= len(arg) + 1
		}
		if pad < 1 {
			pad = 1
		}
		fmt.Fprintf(out, "  %s%s%s\n", left, strings.Repeat(" ", pad), desc)
	}
	note := func(s string) {
		fmt.Fprintf(out, "%s• %s\n", strings.Repeat(" ", 34), s)
	}

	fmt.Fprintln(out, c.heading("# USAGE"))
	fmt.Fprintf(out, "  akamaru [%s] [%s]\n\n", c.option("MODE"), c.value("OPTIONS"))

	fmt.Fprintln(out, c.heading("# MODES"))
	opt("-s, --sector", "<SECTOR>", "List actors targeting a sector (both sources)")
	opt("-g, --group", "<NAME>", "Look up a single actor by name")
	note("'-' reads one name per line from stdin")
	opt("-r, --ransomware-activities", "", "Recent ransomware activity per actor")
	opt("-l, --list-sectors", "", "Print the supported sectors")
	opt("-h, --help", "", "Display this help message")
	fmt.Fprintln(out)

	fmt.Fprintln(out, c.heading("# OUTPUT"))
	opt("-t, --ttps", "", "Include softwares (TTPs) of knowledge-base actors")
	opt("-oc, --output-csv", "", "Export results to a semicolon-delimited CSV")
	opt("-o, --output-dir", "<DIR>", "CSV directory [default: akamaru_output]")
	opt("-v, --verbose", "", "Enable verbose output (detailed logging)")
	opt("--no-colors", "", "Disable colorful output")
	fmt.Fprintln(out)

	fmt.Fprintln(out, c.heading("# NETWORK"))
	opt("-d, --delay", "<SEC>", "Delay between requests [default: 0.25]")
	opt("--proxy", "<PROXY>", "Proxy URL: http://127.0.0.1:8080 or socks5://host:1080")
	opt("--insecure", "", "Skip TLS certificate verification")
	opt("--render", "", "Render JavaScript-built pages with headless Chrome")
	opt("--engine", "<ENGINE>", "Analysis search: auto, google, brave, html")
	note("API keys: AKAMARU_GOOGLE_API_KEYS / AKAMARU_BRAVE_API_KEYS (env or .env)")
	fmt.Fprintln(out)

	fmt.Fprintln(out, c.heading("# EXAMPLES"))
	fmt.Fprintf(out, "  akamaru %s\n", c.value("-s financial -t -oc"))
	fmt.Fprintf(out, "  akamaru %s\n", c.value("-g \"Sandworm\""))
	fmt.Fprintf(out, "  akamaru %s\n", c.value("-r -v"))
	fmt.Fprintf(out, "  cat actors.txt | akamaru %s\n\n", c.value("-g -"))
	fmt.Fprintf(out, "  Config: %s\n\n", c.value("~/.config/akamaru/config.yaml"))
}

// ShowErrorAndExit reports invalid arguments and exits non-zero.
func ShowErrorAndExit(f string, a ...any) {
	LogErr(f, a...)
	LogErr("[!] Run akamaru -h for usage.")
	os.Exit(1)
}

// Headline prints a section title such as "[>] Groups targeting financial".
func Headline(f string, a ...any) {
	fmt.Fprintf(out, "\n%s %s\n", color.HiMagentaString("[>]"), fmt.Sprintf(f, a...))
}

// Info prints a neutral status line.
func Info(f string, a ...any) {
	fmt.Fprintf(out, "%s %s\n", color.CyanString("[*]"), fmt.Sprintf(f, a...))
}

// Success prints a positive status line.
func Success(f string, a ...any) {
	fmt.Fprintf(out, "%s %s\n", color.GreenString("[+]"), fmt.Sprintf(f, a...))
}

// Failure prints a user-facing negative outcome on stdout (not a log line).
func Failure(f string, a ...any) {
	fmt.Fprintf(out, "%s %s\n", color.RedString("[-]"), fmt.Sprintf(f, a...))
}

// Highlight colors an inline value.
func Highlight(s string) string {
	return color.HiMagentaString(s)
}
