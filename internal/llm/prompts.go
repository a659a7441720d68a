package llm

import (
	"fmt"
	"strings"
)

const classifySystemPrompt = `You sort personal dictation into exactly one category.
Reply with the category name only: lowercase, no quotes, no punctuation, no explanation.

Categories:
note - information to keep: meeting notes, observations, things that happened.
task - something to do, a reminder or an errand, with or without a deadline.
ingredient - pantry or fridge stock changes: bought, used up or ran out of ingredients.
recipe - a dish that was cooked or a recipe to save.
recommendation - a book, film, show, podcast, song or product someone recommended.
idea - an idea, concept or project thought worth developing later.
wordle - a Wordle result or score.
restaurant - a restaurant to try, one that was visited or one someone recommended.
person_update - news about a specific person: new job, move, life event, contact details.

Reminders are tasks. Restaurant recommendations are restaurant, not recommendation.
News about one person is person_update, not note.

Examples:
"On Tuesday, I need to pick up my dry cleaning." -> task
"I have an assignment for my Digital Marketing Lab class due on Saturday." -> task
"I need to send a follow up email to Jessica about the cannabis club." -> task
"Make a note that the quarterly review went well and Sam will run the next one." -> note
"We bought a dozen eggs and two bags of flour." -> ingredient
"Used the last of the butter." -> ingredient
"Made the lasagna again tonight with spinach and ricotta." -> recipe
"Priya says I have to read Piranesi." -> recommendation
"What if the grocery app synced with the calendar automatically?" -> idea
"Lorna beat me 3-4 at Wordle." -> wordle
"Dan says Lupa on Bleecker has the best cacio e pepe." -> restaurant
"Jessica just started a new job at Stripe." -> person_update`

const taskSummarySystemPrompt = `Extract only a summary of the task as if it were to be put on a to-do list or Kanban board.
Do not use any leading bullet or hyphen characters.
If a deadline is specified, do not include it in the task summary; it is extracted separately.`

const noteTitleSystemPrompt = `The message contains the body of a note to be stored in a database.
Return only a proposed title for the note, without quotes and without anything else.
Keep it salient and descriptive, not poetic.`

const noteBodySystemPrompt = `You parse elements of a dictation.
Extract just the note part of the message, excluding any commands given to the dictation app.
If the message says "Make a note that I need to...", return "I need to..." onwards.
Return the full note. Do not summarize, paraphrase or copy edit.
You may only remove filler words, fix misspoken words and repair fractured sentences.`

const semanticMatchSystemPrompt = `You match a spoken name to one existing record title.
The candidates are listed one per line.
Reply with exactly one candidate copied verbatim, or NO_MATCH if none clearly refers to the same thing.
Do not explain.`

// noMatchSentinel is the semantic matcher's answer for "none of them".
const noMatchSentinel = "NO_MATCH"

func deadlineSystemPrompt(a DateAnchors) string {
	return fmt.Sprintf(`Return only the deadline knowing today is %s, %s.
If something is due on a weekday, assume the first such weekday after %s.
If no deadline is specified, return %s.
If something is to be done today, return %s.
If something is due tomorrow, return %s.
If something is due by the end of the week, return %s.
If something is due next week, return %s.
If something is due next month, return %s.
Strictly always respond in YYYY-MM-DD format without quotes.`,
		a.Today.Weekday(), a.Today.Format(DateLayout),
		a.Today.Format(DateLayout),
		a.Tomorrow.Format(DateLayout),
		a.Today.Format(DateLayout),
		a.Tomorrow.Format(DateLayout),
		a.EndOfWeek.Format(DateLayout),
		a.NextWeek.Format(DateLayout),
		a.NextMonth.Format(DateLayout))
}

const mentionsSystemPrompt = `Extract the people, companies and classes (school courses) mentioned in the message.
Respond with JSON only, in this shape:
{"people": ["..."], "companies": ["..."], "classes": ["..."]}
Use names as spoken, without titles or possessives. Do not include the speaker. Use empty lists when nothing is mentioned.`

const ingredientSystemPrompt = `Extract the pantry changes in the message.
Respond with JSON only, in this shape:
{"ingredients": [{"name": "...", "quantity": 1}]}
quantity is a whole number: positive for items bought or added, negative for items used up, thrown out or run out of.
When no amount is said, use 1 for added and -1 for used. Use the singular ingredient name.`

const recipeSystemPrompt = `Extract the dish and its ingredients from the message.
Respond with JSON only, in this shape:
{"recipe": "...", "ingredients": ["..."]}
Use the singular ingredient names. Use an empty list when no ingredients are said.`

const recommendationSystemPrompt = `Extract the recommendation from the message.
Respond with JSON only, in this shape:
{"title": "...", "type": "...", "recommended_by": "..."}
type is one of: %s.
recommended_by is the person who made the recommendation, or an empty string.`

const restaurantSystemPrompt = `Extract the restaurant from the message.
Respond with JSON only, in this shape:
{"name": "...", "cuisine": "...", "location": "...", "visited": false, "recommended_by": "..."}
visited is true only if the speaker has already eaten there. Use empty strings for anything not said.`

const personUpdateSystemPrompt = `Extract the news about a person from the message.
Respond with JSON only, in this shape:
{"person": "...", "update": "...", "company": "..."}
update is one short sentence stating the news. company is a company the news mentions, or an empty string.`

const wordleSystemPrompt = `Extract the Wordle scores from the message. The speaker is %s. The other player is %s.
A score is the number of guesses, 1 to 6, or 7 for a failed puzzle. Lower is better.
Respond with JSON only, in this shape:
{"self": 4, "opponent": 3}
Use null for a player whose score is not said.`

func semanticMatchUserPrompt(term string, candidates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n\nCandidates:\n", term)
	for _, c := range candidates {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	return b.String()
}
