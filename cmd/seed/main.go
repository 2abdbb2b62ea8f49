package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/alphabot-ai/gamerev/internal/client"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/google/uuid"
)

var moves = []revision.Op{
	{Op: revision.OpSet, Path: "pile.-1", Value: json.RawMessage(`"draw"`)},
	{Op: revision.OpSet, Path: "score", Value: json.RawMessage(`10`)},
	{Op: revision.OpSet, Path: "foundation.hearts", Value: json.RawMessage(`["A"]`)},
	{Op: revision.OpSet, Path: "waste.-1", Value: json.RawMessage(`"7S"`)},
	{Op: revision.OpDelete, Path: "hint"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gamerev server URL")
	api := flag.String("api", "restlike", "API variant: rest or restlike")
	players := flag.Int("players", 3, "Number of players")
	games := flag.Int("games", 2, "Games per player")
	turns := flag.Int("turns", 5, "Revisions appended per game")
	flag.Parse()

	ctx := context.Background()
	log.Printf("Seeding %s (%s API)...\n", *baseURL, *api)

	// Anonymous ids are only checked for syntax unless the server enforces
	// pairing; use `gamerev issue` for a paired identity in that case.
	var clients []*client.Client
	for i := 0; i < *players; i++ {
		c := client.New(*baseURL)
		if *api == "rest" {
			c.UseUserID(uuid.New())
		} else {
			c.UseAnonymous("a"+strconv.Itoa(1000+i), uuid.New())
		}
		clients = append(clients, c)
	}

	created, appended, conflicts := 0, 0, 0
	for p, c := range clients {
		for g := 0; g < *games; g++ {
			game, err := c.CreateGame(ctx)
			if err != nil {
				log.Fatalf("create game for player %d: %v", p, err)
			}
			created++
			log.Printf("✓ Created game %s (player %d)", game.GameID, p)

			tip := game.Rev
			for turn := 0; turn < *turns; turn++ {
				base := tip
				t := revision.Transformation{Rev: &base, Ops: []revision.Op{moves[rand.Intn(len(moves))]}}
				if rand.Float32() < 0.3 {
					t.Shadow = json.RawMessage(fmt.Sprintf(`{"stock_seed":%d}`, rand.Int63()))
				}
				rev, err := c.AppendRevision(ctx, game.GameID, t)
				if err != nil {
					log.Printf("✗ Failed to append to %s: %v", game.GameID, err)
					continue
				}
				tip = rev.Index
				appended++

				// Replaying the same base shows the conflict path.
				if rand.Float32() < 0.2 {
					if _, err := c.AppendRevision(ctx, game.GameID, t); errors.Is(err, client.ErrConflict) {
						conflicts++
						log.Printf("  ↳ Stale resubmit on rev %d rejected", base)
					}
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Players:   %d\n", len(clients))
	fmt.Printf("Games:     %d\n", created)
	fmt.Printf("Revisions: %d\n", appended)
	fmt.Printf("Conflicts: %d\n", conflicts)
}
