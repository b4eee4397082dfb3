package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// bankCmd asks a running server for one owner's stored reagents.
func bankCmd(args []string) {
	fs := flag.NewFlagSet("bank", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	account := fs.Uint64("account", 0, "account id")
	character := fs.Uint64("character", 0, "character id")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("account", strconv.FormatUint(*account, 10))
	q.Set("character", strconv.FormatUint(*character, 10))
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/bank?" + q.Encode()
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
