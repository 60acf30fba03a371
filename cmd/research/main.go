package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/audio"
	"geminilab/internal/bootstrap"
	"geminilab/internal/research"
)

func main() {
	query := flag.String("query", "", "research question")
	files := flag.String("file", "", "comma-separated documents to analyze with the query")
	audioPath := flag.String("audio", "", "audio recording to analyze with the query")
	ttsOut := flag.String("tts-out", "", "write the spoken summary to this WAV file")
	grounded := flag.Bool("grounded", false, "answer with Google Search grounding and citations")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: research -query <question> [-file a.pdf,b.txt] [-audio clip.wav] [-tts-out out.wav] [-grounded]")
		os.Exit(2)
	}

	c := bootstrap.NewContainer()
	c.MustInitCore("geminilab-research")
	c.MustInitGemini()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := research.NewAgent(c.Generator, c.Tracer, research.Config{
		Model:    c.Config.Gemini.TextModel,
		TTSModel: c.Config.Gemini.TTSModel,
		Voice:    c.Config.Research.Voice,
	})

	if *grounded {
		answer, err := agent.GroundedAnswer(ctx, *query)
		if err != nil {
			c.Log.Errorw("Grounded answer failed", "error", err)
			return
		}
		fmt.Println(answer)
		return
	}

	processor := research.NewFileProcessor(gemini.NewFiles(c.Client), c.Config.Research.PollInterval)
	uploaded, err := uploadAll(ctx, processor, splitList(*files), *audioPath)
	defer func() {
		for _, f := range uploaded {
			processor.Delete(context.Background(), f.Name)
		}
	}()
	if err != nil {
		c.Log.Errorw("File processing failed", "error", err)
		return
	}

	result, err := agent.AnalyzeQuery(ctx, *query, uploaded...)
	if err != nil {
		c.Log.Errorw("Analysis failed", "error", err)
		return
	}
	printResult(result)

	if *ttsOut != "" && result.Summary != "" {
		n, err := agent.GenerateAudio(ctx, result.Summary, *ttsOut)
		if err != nil {
			c.Log.Errorw("Speech generation failed", "error", err)
			return
		}
		f := audio.OutputFormat
		length := time.Duration(n/f.BytesPerFrame()) * time.Second / time.Duration(f.SampleRate)
		fmt.Printf("\nSpoken summary: %s (%s, %s)\n", *ttsOut, humanize.Bytes(uint64(n)), length.Round(100*time.Millisecond))
	}
}

func uploadAll(ctx context.Context, p *research.FileProcessor, paths []string, audioPath string) ([]*genai.File, error) {
	var uploaded []*genai.File

	for _, path := range paths {
		file, err := p.Upload(ctx, path)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, file)
		printUpload(path, file)

		if _, err := p.WaitForProcessing(ctx, file.Name); err != nil {
			return uploaded, err
		}
	}

	if audioPath != "" {
		file, err := p.ProcessAudio(ctx, audioPath)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, file)
		printUpload(audioPath, file)
	}

	return uploaded, nil
}

func printUpload(path string, file *genai.File) {
	size := "unknown size"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("Uploaded %s (%s, %s) as %s\n", path, size, file.MIMEType, file.Name)
}

func printResult(result *research.Result) {
	fmt.Println("\nResearch points:")
	for i, p := range result.Points {
		fmt.Printf("%d. %s [%s, %s confidence]\n   %s\n", i+1, p.Label, p.Source,
			humanize.FormatFloat("#.#", p.Confidence*100)+"%", p.Content)
	}
	fmt.Printf("\nSummary:\n%s\n", result.Summary)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
