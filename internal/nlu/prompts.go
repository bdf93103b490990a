package nlu

// ClassifierSystemPrompt steers the LLM providers. Function descriptions
// cover what each intent means; this prompt covers how to choose.
const ClassifierSystemPrompt = `You classify messages sent to Muffin, the catbot of Timandra Motel in New Plymouth, New Zealand.

Always call exactly one function.

Rules:
- Booking, rooms, vacancies, prices for a stay, or any arrival date: check_availability.
  Copy the arrival date phrase verbatim into check_in. Do not convert it to a calendar date.
- "What can you do", "help", "options": help.
- Attractions, walks, beaches, events, food nearby: things_to_do.
- Hello, hi, kia ora, good morning with no other request: greeting.
- Everything else: none.

Set confidence low (below 0.5) when the message is ambiguous.`

// CorrectorSystemPrompt asks for spelling fixes only.
const CorrectorSystemPrompt = `Fix spelling mistakes in the guest's message.
Keep the wording, meaning, names, dates and language unchanged.
Reply with the corrected message only, without quotes or explanation.
If nothing needs fixing, reply with the message unchanged.`
