package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"xhrbridge/internal/config"
	"xhrbridge/internal/logger"
	"xhrbridge/pkg/api"
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }

func (h *headerFlags) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("header must be name:value")
	}
	*h = append(*h, v)
	return nil
}

// main 演示入口：驱动一次完整交换并打印观察者事件
func main() {
	var (
		cfgPath = flag.String("config", "", "yaml 配置文件路径")
		method  = flag.String("method", "GET", "HTTP 方法")
		body    = flag.String("body", "", "请求体")
		rtype   = flag.String("type", "", "responseType: \"\"/text/json/arraybuffer")
		headers headerFlags
	)
	flag.Var(&headers, "H", "请求头 name:value，可重复")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: xhrcli [flags] <url>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	url := flag.Arg(0)

	cfg := config.NewConfig()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalln("load config:", err)
		}
		cfg = loaded
	}
	l := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		Writers:  cfg.Log.Writer,
		FilePath: cfg.Log.File,
	})

	svc, err := api.New(api.Options{Config: cfg, Logger: l})
	if err != nil {
		log.Fatalln("init service:", err)
	}
	defer svc.Close()

	_, r, err := svc.NewHandle()
	if err != nil {
		log.Fatalln("new handle:", err)
	}
	if err := r.SetResponseType(*rtype); err != nil {
		log.Fatalln(err)
	}
	if err := r.Open(*method, url, true); err != nil {
		log.Fatalln(err)
	}
	for _, h := range headers {
		kv := strings.SplitN(h, ":", 2)
		if err := r.SetRequestHeader(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])); err != nil {
			log.Fatalln(err)
		}
	}

	r.SetOnReadyStateChange(func() {
		fmt.Printf("readystatechange: %s\n", r.ReadyState())
	})
	r.SetOnProgress(func() {
		fmt.Printf("progress: %d bytes\n", r.BytesReceived())
	})
	r.SetOnLoad(func() {
		fmt.Printf("load: status=%d %s\n", r.Status(), r.StatusText())
	})
	r.SetOnError(func() {
		fmt.Println("error: request failed")
	})

	// 完成钩子由服务占用（落库与事件广播），这里经订阅通道等待终局
	events := svc.SubscribeEvents()

	var payload []byte
	if *body != "" {
		payload = []byte(*body)
	}
	if err := r.Send(payload); err != nil {
		log.Fatalln(err)
	}
	<-events

	if hdrs := r.GetAllResponseHeaders(); hdrs != "" {
		fmt.Print(strings.ReplaceAll(hdrs, "\r\n", "\n"))
	}
	fmt.Printf("%v\n", r.Response())
}
