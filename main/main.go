package main

import (
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rawbytedev/rawmem"
	"github.com/rawbytedev/rawmem/pkg/compactwire"
	"gopkg.in/yaml.v3"
)

// frameConfig is the part of the config file that concerns framing; the
// codec options live in the same document.
type frameConfig struct {
	Compression string `yaml:"compression"`
	MaxFrame    int    `yaml:"max_frame"`
}

type Sample struct {
	ID     uint64
	Kind   uint8
	Temp   float32
	Coords [3]float64
	Counts [8]int16
}

func loadConfig(path string) (rawmem.Options, frameConfig, error) {
	var fc frameConfig
	if path == "" {
		return rawmem.Options{}, fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rawmem.Options{}, fc, err
	}
	opts, err := rawmem.ParseOptions(data)
	if err != nil {
		return rawmem.Options{}, fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return rawmem.Options{}, fc, err
	}
	return opts, fc, nil
}

func main() {
	cfgPath := flag.String("config", "", "YAML file with codec and frame options")
	n := flag.Int("n", 10000, "iterations")
	profPath := flag.String("prof", "mem.prof", "heap profile output")
	httpAddr := flag.String("http", "", "serve net/http/pprof on this address, e.g. localhost:6060")
	hold := flag.Duration("hold", 0, "keep the process alive this long after the run")
	flag.Parse()

	opts, fc, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	comp, err := compactwire.ParseCompression(fc.Compression)
	if err != nil {
		log.Fatal(err)
	}
	if *httpAddr != "" {
		go func() {
			log.Println(http.ListenAndServe(*httpAddr, nil))
		}()
	}
	f, err := os.Create(*profPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	runtime.MemProfileRate = 1

	codec := rawmem.NewCodec(opts)
	enc := compactwire.NewEncoder(comp)
	enc.Portable = opts.Portable
	defer enc.Close()
	dec := compactwire.NewDecoder(fc.MaxFrame)
	defer dec.Close()

	in := Sample{ID: 1, Kind: 3, Temp: 21.5, Coords: [3]float64{1.5, -2.25, 3}, Counts: [8]int16{1, 2, 3, 4, 5, 6, 7, 8}}
	var frameBytes int
	start := time.Now()
	for i := 0; i < *n; i++ {
		in.ID = uint64(i)
		blob, err := codec.Pack(in, int32(i))
		if err != nil {
			log.Fatal(err)
		}
		frame, err := enc.Encode(blob)
		if err != nil {
			log.Fatal(err)
		}
		blob.Release()
		frameBytes += len(frame)

		fr, err := dec.Decode(frame)
		if err != nil {
			log.Fatal(err)
		}
		var out Sample
		var seq int32
		if err := codec.Unpack(fr.Blob, &out, &seq); err != nil {
			log.Fatal(err)
		}
		fr.Blob.Release()
		if out != in || seq != int32(i) {
			log.Fatalf("iteration %d: round trip mismatch", i)
		}
	}
	elapsed := time.Since(start)
	log.Printf("%d round trips in %s, compression %s, %d frame bytes", *n, elapsed, comp, frameBytes)

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal(err)
	}
	if *hold > 0 {
		time.Sleep(*hold)
	}
}
