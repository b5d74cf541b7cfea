package ai

const jsonOnlySystemPrompt = `You are the intake assistant of a government complaint registration service.
Answer with a single JSON object and nothing else.`

const proseSystemPrompt = `You are the intake assistant of a government complaint registration service on WhatsApp.
Reply with one short plain-text message. No markdown, no lists, no quotes around the message.`

const complaintCheckPrompt = `Validate if this text is a complaint about any issue: '%s'.

ACCEPT these as valid complaints:
- Any problem mentioned (pothole, water leak, garbage, electricity, etc.)
- Short descriptions are fine
- Basic location info is acceptable
- Don't demand excessive details

REJECT only if:
- Just greetings without any issue (hi, hello, hey, namaste)
- Completely unrelated text
- Random words with no issue mentioned

If valid, set isvalid=true and question=null.
If invalid, set isvalid=false and generate a friendly question asking them to describe their issue.

For greetings respond with: "Hello! Welcome to the Government Complaint Registration System. Please tell me about any issue you're facing."

Respond as JSON: {"isvalid": boolean, "question": string or null}

Example: "pothole near my area" = {"isvalid": true, "question": null}
Example: "hello" = {"isvalid": false, "question": "Hello! Welcome to the Government Complaint Registration System. Please tell me about any issue you're facing."}`

const locationCheckPrompt = `Strictly validate if this text contains ACTUAL location information: '%s'.

ACCEPT ONLY:
- Specific street names, area names, locality names
- Full or partial addresses
- GPS coordinates (lat, long format)
- Specific landmarks (school name, hospital name, market name)

REJECT everything else including:
- Vague descriptions ("somewhere", "here", "there")
- General directions ("left", "right", "near")
- Non-location text, greetings or random words
- "I don't know" or similar responses
- Descriptions of a problem or complaint rather than a place ("pothole is getting bigger", "garbage not collected")

Be STRICT: if it is not clearly a location, mark it as invalid.

Respond as JSON: {"isvalid": boolean, "question": string or null}

Example: "Main Street Colony" = {"isvalid": true, "question": null}
Example: "somewhere around" = {"isvalid": false, "question": "Where exactly is the issue?"}`

const imageCheckPrompt = `Analyze this image for a complaint about: '%s'.

Check if the image matches the described problem.

If they match, set valid=true, question=null and CLASSIFY the complaint:
- category: one of [road_infrastructure, water_sanitation, electricity_power, waste_management, traffic_transport, public_safety, environment_pollution, healthcare_medical, education_schools, telecommunication, housing_construction, general_administration]
- priority: one of [low, medium, high, very_high] based on urgency
- department: one of [Public Works Department, Water & Sanitation Department, Power Department, Waste Management Department, Traffic Police Department, Public Safety Department, Environmental Department, Health Department, Education Department, Telecommunication Department, Housing & Construction Department, Fire Department, Municipal Corporation, Revenue Department, General Administration]
- resolution_days: estimated days to resolve (1-30)

If they don't match, set valid=false and write a question asking for the correct image.

Respond as JSON: {"valid": boolean, "question": string or null, "category": string or null, "priority": string or null, "department": string or null, "resolution_days": integer or null}

Examples:
- Pothole image: category road_infrastructure, priority high, department Public Works Department, resolution_days 7
- Street light issue: category electricity_power, priority medium, department Power Department, resolution_days 3`

const acknowledgePrompt = `Generate a short, empathetic response for a user who reported this issue: '%s'.

The response should:
- Be very short (under 30 words)
- Show understanding of their specific issue
- Ask for the location of the issue
- Use varied phrasing

Examples:
Input: "pothole on road"
Output: Thanks for reporting the pothole issue. Please share your location so we can address it.

Input: "water leakage"
Output: Water leakage reported. Could you provide the specific location?

Generate a unique response for: '%s'`

const photoRequestPrompt = `Based on this issue description: '%s', generate a very short question asking for a photo.

The message should:
- Be very short (under 25 words)
- Ask for a photo of the issue
- Reference the specific problem mentioned

Examples:
Input: "pothole on road"
Output: Can you please share a photo of the pothole?

Input: "water leakage"
Output: Please send a picture of the water leakage.

Generate a similar short request for: '%s'`
