package refine

const scorePrompt = `You are a meticulous text quality analyst. Your task is to evaluate a text segment for signs of poor PDF-to-text conversion.
Analyze the following text for structural errors like incorrectly broken sentences, merged paragraphs, or nonsensical line breaks.
Focus ONLY on structure, grammar, and logical flow. Do not evaluate factual content.

After your analysis, provide a single, valid JSON object with two keys:
- "score": An integer from 1 (very broken) to 10 (perfectly structured).
- "reason": A brief, one-sentence explanation for your score.
The "score" key is mandatory and must always be present.

<example_good>
Text: "The study concluded that further research was necessary. Participants were recruited from a local university."
JSON: {"score": 10, "reason": "The text is well-structured with complete sentences."}
</example_good>

<example_bad>
Text: "The study concluded that further. Research was necessary participants were recruited from a local university."
JSON: {"score": 3, "reason": "A sentence is incorrectly broken after 'further' and improperly merged with the next thought."}
</example_bad>

Now, evaluate this text:
<text_to_analyze>
%s
</text_to_analyze>

Provide only the raw JSON object as your response.`

const repairPrompt = `You are an expert text editor. You will be given a piece of text that was flagged for a specific structural error resulting from a bad PDF conversion.
Your task is to fix ONLY the identified problem and return the corrected text.

**CRITICAL RULES:**
1.  Correct the specific error described in the 'Reason for flagging'.
2.  Do NOT add any new information, content, or commentary.
3.  Do NOT change the meaning of the text.
4.  Preserve the original paragraph structure.
5.  Return only the corrected text, with no preamble or explanation.

**Reason for flagging:** %s

**Problematic Text:**
<text_to_fix>
%s
</text_to_fix>

**Corrected Text:**`
