package triage

// SeverityPrompt is the fixed clinical-scoring prompt sent with every image.
const SeverityPrompt = "You are an expert radiologist triaging brain MRI images based on severity, using a scale from 1 to 10." +
	"\n- **9.00–10.00 (Critical):** Life-threatening conditions needing immediate intervention." +
	"\n- **7.00–8.99 (Urgent):** Serious but non-immediate conditions." +
	"\n- **4.00–6.99 (Moderate):** Non-urgent but medically relevant conditions." +
	"\n- **1.00–3.99 (Low):** Normal MRI findings or minor, non-urgent abnormalities." +
	"\n\n**Instructions:**\n- Provide a severity score with at least two decimal places." +
	"\n- Explain the abnormality concisely." +
	"\n- End with 'Hence its severity score is <rating>'."
