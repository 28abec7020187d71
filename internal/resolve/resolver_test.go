package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files under root; keys are slash-relative paths.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newTestResolver(root string, dirs ...string) *Resolver {
	return NewResolver(root, Options{Dirs: dirs})
}

func TestResolve_FindsDefinition(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/ipv4/udp.c": `/* UDP implementation */
#include <net/udp.h>

int udp_rcv(struct sk_buff *skb)
{
	return __udp4_lib_rcv(skb, &udp_table, IPPROTO_UDP);
}
`,
	})

	loc := newTestResolver(root, "net/ipv4").Resolve(context.Background(), "udp_rcv")

	require.Equal(t, StatusResolved, loc.Status)
	require.Equal(t, "net/ipv4/udp.c", loc.File)
	require.Equal(t, 4, loc.Line)
	require.NotEmpty(t, loc.Body)
	require.Equal(t, 4, loc.BodyLines)
	require.Len(t, loc.Candidates, 1)
}

// A name that appears only inside comments must resolve to the
// unresolved placeholder, never to the commented line.
func TestResolve_RejectsComments(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/core/dev.c": `/*
 * udp_rcv() is called from here eventually.
 */
// see udp_rcv(skb) for details
static int noop(void) { return 0; } /* not udp_rcv */
`,
	})

	loc := newTestResolver(root, "net/core").Resolve(context.Background(), "udp_rcv")

	require.Equal(t, StatusUnresolved, loc.Status)
	require.Equal(t, UnknownFile, loc.File)
	require.Equal(t, 0, loc.Line)
	require.Empty(t, loc.Candidates)
}

func TestResolve_RejectsTrailingLineComment(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/x.c": "static int other(void) // wraps udp_rcv(skb)\n{\n\treturn 0;\n}\n",
	})

	loc := newTestResolver(root, "net").Resolve(context.Background(), "udp_rcv")
	require.Equal(t, StatusUnresolved, loc.Status)
}

// Forward declarations terminate in ';' without a body and must be
// rejected.
func TestResolve_RejectsPrototype(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"include/net/udp.h": "int udp_rcv(struct sk_buff *skb);\n",
		"net/ipv4/udp.c": `int udp_rcv(struct sk_buff *skb)
{
	return 0;
}
`,
	})

	// Header is searched first; its prototype must not win.
	loc := newTestResolver(root, "include/net", "net/ipv4").
		Resolve(context.Background(), "udp_rcv")

	require.Equal(t, StatusResolved, loc.Status)
	require.Equal(t, "net/ipv4/udp.c", loc.File)
	require.Equal(t, 1, loc.Line)
}

// Call sites are statements ending in ';' and must be rejected.
func TestResolve_RejectsCallSites(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/ipv4/ip_input.c": `static int deliver(struct sk_buff *skb)
{
	int ret;

	ret = udp_rcv(skb);
	return ret;
}
`,
	})

	loc := newTestResolver(root, "net/ipv4").Resolve(context.Background(), "udp_rcv")
	require.Equal(t, StatusUnresolved, loc.Status)
}

// Whole-word matching: resolving ip_rcv must not accept a hit inside
// ip_rcv_core's definition, and vice versa.
func TestResolve_WholeWordDisambiguation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/ipv4/ip_input.c": `static int ip_rcv_core(struct sk_buff *skb)
{
	return 0;
}

int ip_rcv(struct sk_buff *skb)
{
	return ip_rcv_core(skb);
}
`,
	})

	r := newTestResolver(root, "net/ipv4")

	short := r.Resolve(context.Background(), "ip_rcv")
	require.Equal(t, StatusResolved, short.Status)
	require.Equal(t, 6, short.Line)
	require.Len(t, short.Candidates, 1)

	long := r.Resolve(context.Background(), "ip_rcv_core")
	require.Equal(t, StatusResolved, long.Status)
	require.Equal(t, 1, long.Line)
}

// Directory order decides among multiple accepted candidates; all of
// them are retained for transparency.
func TestResolve_FirstByDirectoryOrder(t *testing.T) {
	root := t.TempDir()
	def := "int probe_fn(int x)\n{\n\treturn x;\n}\n"
	writeTree(t, root, map[string]string{
		"net/core/a.c": def,
		"drivers/b.c":  def,
	})

	loc := newTestResolver(root, "net/core", "drivers").
		Resolve(context.Background(), "probe_fn")

	require.Equal(t, StatusResolved, loc.Status)
	require.Equal(t, "net/core/a.c", loc.File)
	require.Len(t, loc.Candidates, 2)
	require.Equal(t, "drivers/b.c", loc.Candidates[1].File)
}

// Overlapping search dirs (net contains net/ipv4) must not produce
// duplicate candidates.
func TestResolve_OverlappingDirsDeduplicated(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/ipv4/udp.c": "int udp_rcv(struct sk_buff *skb)\n{\n\treturn 0;\n}\n",
	})

	loc := newTestResolver(root, "net/ipv4", "net").
		Resolve(context.Background(), "udp_rcv")

	require.Equal(t, StatusResolved, loc.Status)
	require.Len(t, loc.Candidates, 1)
}

func TestResolve_MultilineSignature(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/ipv4/tcp.c": `int tcp_sendmsg(struct sock *sk, struct msghdr *msg,
		size_t size)
{
	return 0;
}
`,
	})

	loc := newTestResolver(root, "net/ipv4").Resolve(context.Background(), "tcp_sendmsg")
	require.Equal(t, StatusResolved, loc.Status)
	require.Equal(t, 1, loc.Line)
	require.Equal(t, 5, loc.BodyLines)
}

func TestResolve_NonSourceFilesIgnored(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/Makefile": "obj-y += udp_rcv.o\nint udp_rcv(int x)\n{\n}\n",
	})

	loc := newTestResolver(root, "net").Resolve(context.Background(), "udp_rcv")
	require.Equal(t, StatusUnresolved, loc.Status)
}

func TestResolve_MissingDirSkipped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/udp.c": "int udp_rcv(int x)\n{\n\treturn x;\n}\n",
	})

	loc := newTestResolver(root, "no/such/dir", "net").
		Resolve(context.Background(), "udp_rcv")
	require.Equal(t, StatusResolved, loc.Status)
}

// A context that is already expired degrades the function to a timed-out
// placeholder instead of failing.
func TestResolve_TimeoutDegrades(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/udp.c": "int udp_rcv(int x)\n{\n\treturn x;\n}\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loc := newTestResolver(root, "net").Resolve(ctx, "udp_rcv")
	require.Equal(t, StatusTimeout, loc.Status)
	require.Equal(t, UnknownFile, loc.File)
}

func TestResolveAll_BatchIsolation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"net/udp.c": "int udp_rcv(int x)\n{\n\treturn x;\n}\n",
	})

	r := newTestResolver(root, "net")
	// Duplicates in the input must not cause duplicate work or entries.
	got := r.ResolveAll(context.Background(),
		[]string{"udp_rcv", "no_such_fn", "udp_rcv"}, BatchOptions{Workers: 2})

	require.Len(t, got, 2)
	require.Equal(t, StatusResolved, got["udp_rcv"].Status)
	require.Equal(t, StatusUnresolved, got["no_such_fn"].Status)
}
