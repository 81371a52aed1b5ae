// Command newsctl is a terminal client for a newsboard server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cppla/newsboard/client"
	"github.com/cppla/newsboard/models"
)

const usage = `usage: newsctl [-server URL] [-session FILE] <command> [flags]

commands:
  list        [-category NAME] [-page N] [-size N]
  show        ID
  create      -title T -content C -category NAME [-excerpt E] [-tags a,b] [-draft] [-featured]
  edit        ID [-title T] [-content C] [-category NAME] [-excerpt E] [-tags a,b] [-published true|false] [-featured true|false]
  delete      ID
  categories
  register    -email E -password P
  login       -email E -password P
  logout
  whoami
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("newsctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	server := global.String("server", envOr("NEWSBOARD_URL", "http://localhost:8080"), "API base URL")
	session := global.String("session", envOr("NEWSBOARD_SESSION", client.DefaultSessionPath()), "session file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &commands{
		api: client.New(*server, client.FileTokenStore{Path: *session}),
		out: stdout,
	}
	cmd, rest := global.Arg(0), global.Args()[1:]
	err := cli.dispatch(ctx, cmd, rest)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		printError(stderr, cmd, err)
		return 1
	}
	return 0
}

type commands struct {
	api *client.Client
	out io.Writer
}

func (c *commands) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.list(ctx, args)
	case "show":
		return c.show(ctx, args)
	case "create":
		return c.create(ctx, args)
	case "edit":
		return c.edit(ctx, args)
	case "delete":
		return c.remove(ctx, args)
	case "categories":
		return c.categories(ctx)
	case "register", "login":
		return c.credentials(ctx, cmd, args)
	case "logout":
		if err := c.api.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Logged out")
		return nil
	case "whoami":
		return c.whoami(ctx)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *commands) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	category := fs.String("category", "", "category filter, all for none")
	page := fs.Int("page", 0, "zero-based page")
	size := fs.Int("size", models.DefaultPageSize, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := c.api.ListPosts(ctx, client.ListOptions{Category: *category, Page: *page, Size: *size})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTATUS\tVIEWS\tCREATED")
	for _, p := range res.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", p.ID, truncate(p.Title, 48), p.Category, status(p), p.ViewsCount, p.CreatedAt.Local().Format(time.DateOnly))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	pg := res.Pagination
	fmt.Fprintf(c.out, "page %d of %d, %d posts\n", pg.Page+1, max(pg.TotalPages, 1), pg.Total)
	return nil
}

func (c *commands) show(ctx context.Context, args []string) error {
	id, err := postID(args)
	if err != nil {
		return err
	}
	p, err := c.api.GetPost(ctx, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", p.Title)
	fmt.Fprintf(tw, "Slug:\t%s\n", p.Slug)
	fmt.Fprintf(tw, "Category:\t%s\n", p.Category)
	if len(p.Tags) > 0 {
		fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(tw, "Status:\t%s\n", status(*p))
	fmt.Fprintf(tw, "Reading time:\t%d min\n", p.ReadingTime)
	fmt.Fprintf(tw, "Views:\t%d\n", p.ViewsCount)
	fmt.Fprintf(tw, "Created:\t%s\n", p.CreatedAt.Local().Format(time.DateTime))
	if err := tw.Flush(); err != nil {
		return err
	}
	if p.Excerpt != "" {
		fmt.Fprintf(c.out, "\n%s\n", p.Excerpt)
	}
	fmt.Fprintf(c.out, "\n%s\n", p.Content)
	return nil
}

func (c *commands) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	var req models.PostCreateRequest
	fs.StringVar(&req.Title, "title", "", "post title")
	fs.StringVar(&req.Content, "content", "", "post body, - reads stdin")
	fs.StringVar(&req.Excerpt, "excerpt", "", "short summary")
	fs.StringVar(&req.Category, "category", "", "category name")
	tags := fs.String("tags", "", "comma separated tags")
	draft := fs.Bool("draft", false, "save unpublished")
	featured := fs.Bool("featured", false, "mark as featured")
	if err := fs.Parse(args); err != nil {
		return err
	}
	content, err := readContent(req.Content)
	if err != nil {
		return err
	}
	req.Content = content
	req.Tags = splitTags(*tags)
	published := !*draft
	req.IsPublished = &published
	req.IsFeatured = featured

	p, err := c.api.CreatePost(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created post %d (%s)\n", p.ID, p.Slug)
	return nil
}

func (c *commands) edit(ctx context.Context, args []string) error {
	id, err := postID(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	var (
		req                                     models.PostUpdateRequest
		title, content, excerpt, category, tags optString
		published, featured                     optBool
	)
	fs.Var(&title, "title", "new title")
	fs.Var(&content, "content", "new body, - reads stdin")
	fs.Var(&excerpt, "excerpt", "new summary")
	fs.Var(&category, "category", "new category")
	fs.Var(&tags, "tags", "comma separated tags, empty clears")
	fs.Var(&published, "published", "true or false")
	fs.Var(&featured, "featured", "true or false")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	req.Title, req.Excerpt, req.Category = title.v, excerpt.v, category.v
	req.IsPublished, req.IsFeatured = published.v, featured.v
	if content.v != nil {
		body, err := readContent(*content.v)
		if err != nil {
			return err
		}
		req.Content = &body
	}
	if tags.v != nil {
		t := splitTags(*tags.v)
		if t == nil {
			t = []string{}
		}
		req.Tags = &t
	}

	p, err := c.api.UpdatePost(ctx, id, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated post %d (%s)\n", p.ID, p.Slug)
	return nil
}

func (c *commands) remove(ctx context.Context, args []string) error {
	id, err := postID(args)
	if err != nil {
		return err
	}
	if err := c.api.DeletePost(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted post %d\n", id)
	return nil
}

func (c *commands) categories(ctx context.Context) error {
	cats, err := c.api.Categories(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSLUG")
	for _, cat := range cats {
		fmt.Fprintf(tw, "%s\t%s\n", cat.Name, cat.Slug)
	}
	return tw.Flush()
}

func (c *commands) credentials(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var (
		res *models.AuthResult
		err error
	)
	if cmd == "register" {
		res, err = c.api.Register(ctx, models.RegisterRequest{Email: *email, Password: *password, ConfirmPassword: *password})
	} else {
		res, err = c.api.Login(ctx, models.LoginRequest{Email: *email, Password: *password})
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as %s (user %d), token valid until %s\n", res.User.Email, res.User.ID, res.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (c *commands) whoami(ctx context.Context) error {
	s, err := c.api.Session()
	if err != nil {
		return err
	}
	if !s.LoggedIn() {
		fmt.Fprintln(c.out, "Not signed in")
		return nil
	}
	u, err := c.api.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (user %d)\n", u.Email, u.ID)
	return nil
}

// printError shows a generic message for the command plus any field errors.
func printError(w io.Writer, cmd string, err error) {
	switch cmd {
	case "create", "edit":
		fmt.Fprintln(w, "Error saving post:", err)
	case "list", "show":
		fmt.Fprintln(w, "Error fetching post:", err)
	default:
		fmt.Fprintln(w, "Error:", err)
	}
	for _, f := range client.FieldErrors(err) {
		fmt.Fprintf(w, "  - %s: %s\n", f.Field, f.Message)
	}
}

func postID(args []string) (uint, error) {
	if len(args) == 0 {
		return 0, errors.New("post ID is required")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid post ID %q - must be a positive number", args[0])
	}
	return uint(id), nil
}

func readContent(v string) (string, error) {
	if v != "-" {
		return v, nil
	}
	b, err := io.ReadAll(os.Stdin)
	return string(b), err
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func status(p models.Post) string {
	if p.IsPublished {
		return "published"
	}
	return "draft"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// optString and optBool record whether a flag was given at all.
type optString struct{ v *string }

func (o *optString) String() string {
	if o.v == nil {
		return ""
	}
	return *o.v
}

func (o *optString) Set(s string) error {
	o.v = &s
	return nil
}

type optBool struct{ v *bool }

func (o *optBool) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.FormatBool(*o.v)
}

func (o *optBool) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.v = &b
	return nil
}
